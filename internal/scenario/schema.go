package scenario

import "github.com/zclconf/go-cty/cty"

// gridFile is the top-level structure of a user's grid file, containing all
// scenario blocks declared in it.
type gridFile struct {
	Scenarios []*scenarioBlock `hcl:"scenario,block"`
}

// scenarioBlock is a `scenario` block from a grid file.
type scenarioBlock struct {
	Name   string       `hcl:"name,label"`
	Model  *modelBlock  `hcl:"model,block"`
	Data   *dataBlock   `hcl:"data,block"`
	Sample *sampleBlock `hcl:"sample,block"`
	Output *outputBlock `hcl:"output,block"`
}

// modelBlock declares the Stan program, either inline or from a file path
// relative to the grid file.
type modelBlock struct {
	Program     string `hcl:"program,optional"`
	ProgramFile string `hcl:"program_file,optional"`
}

// dataBlock declares the dataset, either as literal values or from a JSON or
// YAML file. Replicate synthesizes a larger input by tiling sequences and
// scaling whole-number scalars.
type dataBlock struct {
	Values    cty.Value `hcl:"values,optional"`
	File      string    `hcl:"file,optional"`
	Replicate *int      `hcl:"replicate,optional"`
}

// sampleBlock selects the sampling function and its tuning parameters.
type sampleBlock struct {
	Function     string `hcl:"function"`
	NumWarmup    int    `hcl:"num_warmup"`
	NumSamples   int    `hcl:"num_samples"`
	PollInterval string `hcl:"poll_interval,optional"`
}

// outputBlock declares where the fit artifact (and optionally a run report)
// is written.
type outputBlock struct {
	Path       string `hcl:"path"`
	ReportPath string `hcl:"report_path,optional"`
	Summarize  bool   `hcl:"summarize,optional"`
}
