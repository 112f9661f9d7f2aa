// Package sbom renders the locked build container as an SPDX document,
// for attaching provenance to pipeline runs.
package sbom

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	spdxjson "github.com/spdx/tools-golang/json"
	"github.com/spdx/tools-golang/spdx"
	common "github.com/spdx/tools-golang/spdx/v2/common"

	"github.com/turbokube/potr/pkg/fingerprint"
)

const toolName = "potr"

// Document describes the build container image as a single CONTAINER
// package whose MD5 checksum is the locked content fingerprint.
func Document(imageRef string, fp fingerprint.Fingerprint, version string) *spdx.Document {
	packageID := makePackageID(imageRef)
	pkg := &spdx.Package{
		PackageName:             imageRef,
		PackageSPDXIdentifier:   common.ElementID(packageID),
		PrimaryPackagePurpose:   "CONTAINER",
		PackageDownloadLocation: "NOASSERTION",
		FilesAnalyzed:           false,
		PackageHomePage:         "NOASSERTION",
		PackageLicenseDeclared:  "NOASSERTION",
		PackageChecksums: []common.Checksum{
			{Algorithm: common.MD5, Value: fp.String()},
		},
	}
	return &spdx.Document{
		SPDXVersion:       spdx.Version,
		DataLicense:       spdx.DataLicense,
		SPDXIdentifier:    common.ElementID("DOCUMENT"),
		DocumentName:      imageRef,
		DocumentNamespace: fmt.Sprintf("https://turbokube.dev/spdxdocs/potr-%s", fp),
		CreationInfo: &spdx.CreationInfo{
			Creators: []common.Creator{
				{CreatorType: "Tool", Creator: fmt.Sprintf("%s-%s", toolName, version)},
			},
			Created: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		},
		Packages: []*spdx.Package{pkg},
		Relationships: []*spdx.Relationship{
			{
				RefA:         common.MakeDocElementID("", "DOCUMENT"),
				RefB:         common.MakeDocElementID("", packageID),
				Relationship: "DESCRIBES",
			},
		},
	}
}

// Write serializes the document as SPDX JSON
func Write(doc *spdx.Document, w io.Writer) error {
	if err := spdxjson.Write(doc, w); err != nil {
		return fmt.Errorf("write spdx: %w", err)
	}
	return nil
}

var nonAlphaNum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// makePackageID derives the element id, the SPDXRef- prefix is added by the writer
func makePackageID(name string) string {
	cleaned := strings.Trim(nonAlphaNum.ReplaceAllString(name, "-"), "-")
	if cleaned == "" {
		cleaned = "image"
	}
	return "Package-" + cleaned
}
