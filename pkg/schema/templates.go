package schema

import (
	"fmt"

	v1 "github.com/turbokube/potr/pkg/schema/v1"
)

const (
	DefaultEngineBinary      = "docker"
	DefaultEngineSudo        = "auto"
	DefaultEngineTimeout     = "10m"
	DefaultBuildContainerDir = "build-container"
	DefaultLockFile          = "potr.sum"
	DefaultRunWorkdir        = "/work"
	DefaultDeployDir         = "."

	buildContainerTagSuffix = "build-container"
	deployTagSuffix         = "latest"
)

// ApplyDefaults fills zero-value config fields with the project convention defaults.
func ApplyDefaults(config *v1.PotrConfig) {
	if config.BuildContainer.Path == "" {
		config.BuildContainer.Path = DefaultBuildContainerDir
	}
	if config.BuildContainer.Lock == "" {
		config.BuildContainer.Lock = DefaultLockFile
	}
	if config.Run.Workdir == "" {
		config.Run.Workdir = DefaultRunWorkdir
	}
	if config.Deploy.Path == "" {
		config.Deploy.Path = DefaultDeployDir
	}
	if config.Engine.Binary == "" {
		config.Engine.Binary = DefaultEngineBinary
	}
	if config.Engine.Sudo == "" {
		config.Engine.Sudo = DefaultEngineSudo
	}
	if config.Engine.Timeout == "" {
		config.Engine.Timeout = DefaultEngineTimeout
	}
}

// BuildContainerTag is the local tag for the project's build container image.
func BuildContainerTag(config v1.PotrConfig) string {
	if config.BuildContainer.Tag != "" {
		return config.BuildContainer.Tag
	}
	return fmt.Sprintf("%s:%s", config.Name, buildContainerTagSuffix)
}

// DeployTag is the local tag for the project's deploy image.
func DeployTag(config v1.PotrConfig) string {
	if config.Deploy.Tag != "" {
		return config.Deploy.Tag
	}
	return fmt.Sprintf("%s:%s", config.Name, deployTagSuffix)
}
