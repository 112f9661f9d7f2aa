package v1

// PotrConfig is the project convention read from potr.conf.
// Field names follow the json tags in YAML too.
type PotrConfig struct {
	Status PotrConfigStatus `json:"-"`
	// Name is the project image name, used as the repository part of local tags
	Name string `json:"name"`
	// ArgsCommon are engine args inserted into every invocation, for example --tlsverify
	ArgsCommon     []string       `json:"argsCommon,omitempty"`
	BuildContainer BuildContainer `json:"buildContainer,omitempty"`
	Run            RunSpec        `json:"run,omitempty"`
	Deploy         DeploySpec     `json:"deploy,omitempty"`
	Push           PushSpec       `json:"push,omitempty"`
	Engine         EngineSpec     `json:"engine,omitempty"`
	History        HistorySpec    `json:"history,omitempty"`
}

type PotrConfigStatus struct {
	Md5    string // config source md5
	Sha256 string // config source sha256
}

// BuildContainer configures the image that the project's build steps run in.
type BuildContainer struct {
	// Path is the engine build context directory for the build container
	Path string `json:"path,omitempty"`
	// Args are extra engine build args
	Args []string `json:"args,omitempty"`
	// Lock is the fingerprint lock file path, relative to the project root
	Lock string `json:"lock,omitempty"`
	// Ignore lists filesystem paths excluded from fingerprinting,
	// dockerignore style patterns matched against rootless paths like var/cache
	Ignore []string `json:"ignore,omitempty"`
	// Tag overrides the local build container tag
	Tag string `json:"tag,omitempty"`
}

type RunSpec struct {
	// Args are extra engine run args, typically mounts and env
	Args []string `json:"args,omitempty"`
	// Workdir is the container path where the project root is mounted
	Workdir string `json:"workdir,omitempty"`
	// NoMount disables mounting of the project root
	NoMount bool `json:"noMount,omitempty"`
}

type DeploySpec struct {
	// Path is the engine build context directory for the deploy image
	Path string `json:"path,omitempty"`
	Args []string `json:"args,omitempty"`
	// Tag overrides the local deploy tag
	Tag string `json:"tag,omitempty"`
}

type PushSpec struct {
	// Repo is the remote repository without tag,
	// for example 123456789012.dkr.ecr.eu-west-1.amazonaws.com/myapp
	Repo string `json:"repo,omitempty"`
	Args []string `json:"args,omitempty"`
	// Tag overrides the remote tag, default is the deploy tag's identifier
	Tag string `json:"tag,omitempty"`
}

type EngineSpec struct {
	// Binary is the engine CLI, docker or podman
	Binary string `json:"binary,omitempty"`
	// Sudo is auto, never or always
	Sudo string `json:"sudo,omitempty"`
	// Timeout bounds each engine invocation except run, Go duration string
	Timeout string `json:"timeout,omitempty"`
}

type HistorySpec struct {
	// Path of the verification history sqlite file, empty disables history
	Path string `json:"path,omitempty"`
}
