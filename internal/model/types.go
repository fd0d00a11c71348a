package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Shape is a translucent circle. Coordinates and size are in calculation
// pixels; color channels are in [0,255] and alpha in [min alpha, 1].
type Shape struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
	R    float64 `json:"r"`
	G    float64 `json:"g"`
	B    float64 `json:"b"`
	A    float64 `json:"a"`
}

// Gene is an ordered shape list. Later shapes are composited over earlier ones.
type Gene struct {
	Shapes []Shape `json:"shapes"`
}

// Clone returns a gene that shares no shape storage with g.
func (g Gene) Clone() Gene {
	if g.Shapes == nil {
		return Gene{}
	}
	shapes := make([]Shape, len(g.Shapes))
	copy(shapes, g.Shapes)
	return Gene{Shapes: shapes}
}

// ScoredGene pairs a gene with the error it scored in one generation.
type ScoredGene struct {
	Gene  Gene
	Error float64
}

// RunRecord summarizes one archived run.
type RunRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	CreatedAtUTC   string    `json:"created_at_utc"`
	Source         string    `json:"source"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	Config         RunConfig `json:"config"`
	Generations    int       `json:"generations"`
	Improvements   int       `json:"improvements"`
	FinalBestError float64   `json:"final_best_error"`
	StopReason     string    `json:"stop_reason"`
	Failure        string    `json:"failure,omitempty"`
}

// RunConfig mirrors the evolution settings a run was started with.
type RunConfig struct {
	CalculationWidth         int     `json:"calculation_width"`
	PreviewWidth             int     `json:"preview_width"`
	MaxShapes                int     `json:"max_shapes"`
	MinAlpha                 float64 `json:"min_alpha"`
	MinSize                  float64 `json:"min_size"`
	GenerationSize           int     `json:"generation_size"`
	Survivors                int     `json:"survivors"`
	SizeExponent             float64 `json:"size_exponent"`
	ShrinkProbability        float64 `json:"shrink_probability"`
	PointMutationProbability float64 `json:"point_mutation_probability"`
	PositionDelta            float64 `json:"position_delta"`
	ColorDelta               float64 `json:"color_delta"`
	AlphaDelta               float64 `json:"alpha_delta"`
	SizeJitter               float64 `json:"size_jitter"`
	SortKey                  string  `json:"sort_key"`
	Metric                   string  `json:"metric"`
	MaxGenerations           int     `json:"max_generations"`
	Workers                  int     `json:"workers"`
	FPS                      float64 `json:"fps"`
	Seed                     int64   `json:"seed"`
}

// BestGeneRecord archives the best-of-run gene of a finished run.
type BestGeneRecord struct {
	VersionedRecord
	RunID      string  `json:"run_id"`
	Generation int     `json:"generation"`
	Error      float64 `json:"error"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Gene       Gene    `json:"gene"`
}
