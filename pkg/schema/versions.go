package schema

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	yaml "github.com/invopop/yaml"
	"github.com/spf13/afero"
	v1 "github.com/turbokube/potr/pkg/schema/v1"
	"go.uber.org/zap"
)

// Fs is the underlying filesystem to use for reading project configuration. OS FS by default
var Fs = afero.NewOsFs()

var stdin []byte

// ParseConfig reads a potr.conf file, rejects unknown fields,
// records source digests and applies convention defaults.
func ParseConfig(filename string) (v1.PotrConfig, error) {
	noconfig := v1.PotrConfig{}
	buf, err := ReadConfiguration(filename)
	if err != nil {
		return noconfig, fmt.Errorf("read potr config: %w", err)
	}
	return parseConfig(buf)
}

func parseConfig(buf []byte) (v1.PotrConfig, error) {
	var config v1.PotrConfig
	// config structs carry json tags, so YAML goes through a JSON representation
	jsonBuf, err := yaml.YAMLToJSON(buf)
	if err != nil {
		return config, fmt.Errorf("potr config yaml: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(jsonBuf))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&config); err != nil {
		return config, fmt.Errorf("potr config fields: %w", err)
	}
	if config.Name == "" {
		return config, errors.New("potr config requires name")
	}
	config.Status.Sha256 = fmt.Sprintf("%x", sha256.Sum256(buf))
	config.Status.Md5 = fmt.Sprintf("%x", md5.Sum(buf))
	ApplyDefaults(&config)
	return config, nil
}

// ReadConfiguration reads config and returns content
func ReadConfiguration(filePath string) ([]byte, error) {
	switch {
	case filePath == "":
		return nil, errors.New("filename not specified")
	case filePath == "-":
		if len(stdin) == 0 {
			var err error
			stdin, err = io.ReadAll(os.Stdin)
			if err != nil {
				return []byte{}, err
			}
		}
		return stdin, nil
	default:
		if !filepath.IsAbs(filePath) {
			dir, err := os.Getwd()
			if err != nil {
				zap.L().Error("get absolute path for config",
					zap.String("path", filePath),
					zap.Error(err),
				)
				return []byte{}, err
			}
			filePath = filepath.Join(dir, filePath)
		}
		contents, err := afero.ReadFile(Fs, filePath)
		if err != nil {
			return []byte{}, err
		}

		return contents, err
	}
}
