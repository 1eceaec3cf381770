package dlworker

import (
	"context"
	"io/ioutil"

	"github.com/grailbio/base/file"
	"gopkg.in/yaml.v3"

	"github.com/grailbio/consensus/internal/cerrors"
)

// LoadConfig reads a YAML-encoded Config from path, the file-based
// counterpart to the teacher's flag-populated Opts structs
// (markduplicates.Opts, pileup/snp.Opts are populated from flags; this
// worker has no CLI surface of its own, per spec.md §1, so its
// configuration is file-based instead). path is opened through
// github.com/grailbio/base/file, matching how markduplicates.Opts.BamFile
// is opened rather than through os.Open, so the same local/S3/GCS transport
// layer the teacher relies on works here too.
func LoadConfig(ctx context.Context, path string) (Config, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return Config{}, cerrors.E(cerrors.ConfigurationError, err, "dlworker: opening config", path)
	}
	defer f.Close(ctx)

	data, err := ioutil.ReadAll(f.Reader(ctx))
	if err != nil {
		return Config{}, cerrors.E(cerrors.ConfigurationError, err, "dlworker: reading config", path)
	}

	cfg := DefaultConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, cerrors.E(cerrors.ConfigurationError, err, "dlworker: parsing config", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
