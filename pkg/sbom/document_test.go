package sbom_test

import (
	"bytes"
	"testing"

	. "github.com/onsi/gomega"
	spdxjson "github.com/spdx/tools-golang/json"
	"github.com/turbokube/potr/pkg/fingerprint"
	"github.com/turbokube/potr/pkg/sbom"
)

func TestDocument(t *testing.T) {
	g := NewWithT(t)
	fp, err := fingerprint.Parse("d41d8cd98f00b204e9800998ecf8427e")
	g.Expect(err).NotTo(HaveOccurred())

	doc := sbom.Document("myapp:build-container", fp, "1.2.3")
	g.Expect(doc.SPDXVersion).To(Equal("SPDX-2.3"))
	g.Expect(doc.DataLicense).To(Equal("CC0-1.0"))
	g.Expect(string(doc.SPDXIdentifier)).To(Equal("DOCUMENT"))
	g.Expect(doc.DocumentName).To(Equal("myapp:build-container"))
	g.Expect(doc.DocumentNamespace).To(ContainSubstring(fp.String()))
	g.Expect(doc.CreationInfo.Creators).To(HaveLen(1))
	g.Expect(doc.CreationInfo.Creators[0].CreatorType).To(Equal("Tool"))
	g.Expect(doc.CreationInfo.Creators[0].Creator).To(Equal("potr-1.2.3"))
	g.Expect(doc.CreationInfo.Created).NotTo(BeEmpty())

	g.Expect(doc.Packages).To(HaveLen(1))
	pkg := doc.Packages[0]
	g.Expect(pkg.PackageName).To(Equal("myapp:build-container"))
	g.Expect(pkg.PrimaryPackagePurpose).To(Equal("CONTAINER"))
	g.Expect(string(pkg.PackageSPDXIdentifier)).NotTo(HavePrefix("SPDXRef-"), "the writer adds the ref prefix")
	g.Expect(pkg.PackageChecksums).To(HaveLen(1))
	g.Expect(string(pkg.PackageChecksums[0].Algorithm)).To(Equal("MD5"))
	g.Expect(pkg.PackageChecksums[0].Value).To(Equal(fp.String()))

	g.Expect(doc.Relationships).To(HaveLen(1))
	rel := doc.Relationships[0]
	g.Expect(rel.Relationship).To(Equal("DESCRIBES"))
	g.Expect(rel.RefA.ElementRefID).To(Equal(doc.SPDXIdentifier))
	g.Expect(rel.RefB.ElementRefID).To(Equal(pkg.PackageSPDXIdentifier))
}

func TestWriteRoundTrip(t *testing.T) {
	g := NewWithT(t)
	fp, err := fingerprint.Parse("9e107d9d372bb6826bd81d3542a419d6")
	g.Expect(err).NotTo(HaveOccurred())
	doc := sbom.Document("myapp:build-container", fp, "0.1.0")

	var buf bytes.Buffer
	g.Expect(sbom.Write(doc, &buf)).To(Succeed())
	g.Expect(buf.String()).To(ContainSubstring(`"SPDXRef-DOCUMENT"`))
	g.Expect(buf.String()).To(ContainSubstring(fp.String()))

	read, err := spdxjson.Read(bytes.NewReader(buf.Bytes()))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(read.Packages).To(HaveLen(1))
	g.Expect(read.Packages[0].PackageName).To(Equal("myapp:build-container"))
	g.Expect(read.Packages[0].PackageChecksums).To(HaveLen(1))
	g.Expect(read.Packages[0].PackageChecksums[0].Value).To(Equal(fp.String()))

	var describes bool
	for _, rel := range read.Relationships {
		if rel.Relationship == "DESCRIBES" {
			describes = true
		}
	}
	g.Expect(describes).To(BeTrue(), "round trip must keep the DESCRIBES relationship")
}
