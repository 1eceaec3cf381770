package cnnconsensus

import (
	"context"
	"io/ioutil"

	"github.com/grailbio/base/file"

	"github.com/grailbio/consensus/internal/cerrors"
)

// ModelLoader reads a serialized model's raw bytes from path and builds an
// Inferencer around them. The serialization format and inference runtime
// are plugged in by the caller (spec.md §1 keeps the actual CNN runtime out
// of scope) -- this only standardizes how the model path is read, the same
// way markduplicates.Opts.BamFile/MetricsFile are opened via
// github.com/grailbio/base/file rather than os.Open so local, S3, and GCS
// paths all work unmodified.
type ModelLoader func(modelBytes []byte) (Inferencer, error)

// LoadInferencer reads the model at path and hands its bytes to build.
func LoadInferencer(ctx context.Context, path string, build ModelLoader) (Inferencer, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, cerrors.E(cerrors.ConfigurationError, err, "cnnconsensus: opening model", path)
	}
	defer f.Close(ctx)

	data, err := ioutil.ReadAll(f.Reader(ctx))
	if err != nil {
		return nil, cerrors.E(cerrors.ConfigurationError, err, "cnnconsensus: reading model", path)
	}
	inf, err := build(data)
	if err != nil {
		return nil, cerrors.E(cerrors.ConfigurationError, err, "cnnconsensus: building inferencer from", path)
	}
	return inf, nil
}
