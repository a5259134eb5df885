package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Run describes a run history row in a transport-friendly format.
type Run struct {
	ID                string  `json:"id"`
	OutputID          string  `json:"outputId,omitempty"`
	Source            string  `json:"source,omitempty"`
	Status            string  `json:"status"`
	Active            bool    `json:"active"`
	SentenceCount     int     `json:"sentenceCount"`
	Audio             string  `json:"audio,omitempty"`
	OutputPath        string  `json:"outputPath,omitempty"`
	Seconds           float64 `json:"seconds"`
	Segments          int     `json:"segments"`
	IncludedSentences []int   `json:"includedSentences,omitempty"`
	AudioApplied      bool    `json:"audioApplied"`
	Degraded          bool    `json:"degraded"`
	FailedStage       string  `json:"failedStage,omitempty"`
	ErrorClass        string  `json:"errorClass,omitempty"`
	ErrorMessage      string  `json:"errorMessage,omitempty"`
	CreatedAt         string  `json:"createdAt,omitempty"`
	UpdatedAt         string  `json:"updatedAt,omitempty"`
	FinishedAt        string  `json:"finishedAt,omitempty"`
	ElapsedSeconds    float64 `json:"elapsedSeconds"`
}

// RunListResponse wraps a collection of runs.
type RunListResponse struct {
	Runs []Run `json:"runs"`
}

// RunResponse wraps a single run.
type RunResponse struct {
	Run Run `json:"run"`
}

// ManifestEntry is one clip of the master timeline, in playback order.
type ManifestEntry struct {
	Sentence int `json:"sentence"`
	Ordinal  int `json:"ordinal"`
}

// Asset describes a published video.
type Asset struct {
	OutputID     string          `json:"outputId"`
	Path         string          `json:"path"`
	Seconds      float64         `json:"seconds"`
	Segments     int             `json:"segments"`
	Sentences    []int           `json:"sentences"`
	Manifest     []ManifestEntry `json:"manifest"`
	PlanScaled   bool            `json:"planScaled"`
	FaceCam      bool            `json:"faceCam"`
	AudioApplied bool            `json:"audioApplied"`
	Degraded     bool            `json:"degraded"`
}

// SubmitResponse reports the outcome of a synchronous assembly request.
type SubmitResponse struct {
	RunID          string `json:"runId,omitempty"`
	Asset          *Asset `json:"asset,omitempty"`
	Error          string `json:"error,omitempty"`
	FailedStage    string `json:"failedStage,omitempty"`
	Classification string `json:"classification,omitempty"`
}

// AudioFile is one track of the local audio library. Locator is what a
// request passes as its audio field.
type AudioFile struct {
	Name       string `json:"name"`
	Locator    string `json:"locator"`
	SizeBytes  int64  `json:"sizeBytes"`
	ModifiedAt string `json:"modifiedAt,omitempty"`
}

// AudioListResponse wraps the audio library listing.
type AudioListResponse struct {
	Files []AudioFile `json:"files"`
}

// RunSummary counts runs by lifecycle state.
type RunSummary struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Done   int `json:"done"`
	Failed int `json:"failed"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckStatus captures a preflight check result.
type CheckStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// ServiceStatus aggregates serve runtime information for API consumers.
type ServiceStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	RunStorePath  string             `json:"runStorePath"`
	LockFilePath  string             `json:"lockFilePath"`
	IntakeEnabled bool               `json:"intakeEnabled"`
	Runs          RunSummary         `json:"runs"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	Checks        []CheckStatus      `json:"checks"`
}
