package data

import (
	"time"
)

// LogCapacity bounds JobState.Logs; the oldest lines are evicted first.
const LogCapacity = 200

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

// IsFinished reports whether the document reached a terminal state.
func (s Status) IsFinished() bool {
	return s == StatusSuccess || s == StatusFailed
}

// IsResumable reports whether the processing loop should pick the document up.
// Documents interrupted mid-export stay in_progress and are processed again.
func (s Status) IsResumable() bool {
	return s == StatusPending || s == StatusInProgress
}

type DocumentRef struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Kind       string     `json:"type"`
	FolderPath []string   `json:"folderPath"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`

	Status      Status     `json:"status"`
	RetryCount  int        `json:"retryCount"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Duration    int64      `json:"duration,omitempty"` // milliseconds
	Format      string     `json:"format,omitempty"`
	ExportURL   string     `json:"exportUrl,omitempty"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	LocalPath   string     `json:"localPath,omitempty"`
	Skipped     bool       `json:"skipped,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ClearAttempt drops everything a previous attempt recorded.
func (d *DocumentRef) ClearAttempt() {
	d.RetryCount = 0
	d.StartTime = nil
	d.EndTime = nil
	d.Duration = 0
	d.Format = ""
	d.ExportURL = ""
	d.DownloadURL = ""
	d.LocalPath = ""
	d.Skipped = false
	d.Error = ""
}

// Finish stamps the end time and duration of the current attempt.
func (d *DocumentRef) Finish(now time.Time) {
	d.EndTime = &now
	if d.StartTime != nil {
		d.Duration = now.Sub(*d.StartTime).Milliseconds()
	}
}

type Naming struct {
	TimestampSource string `json:"timestampSource,omitempty"` // off, createdAt, updatedAt
	TimestampFormat string `json:"timestampFormat,omitempty"`
}

type JobState struct {
	RunID            string            `json:"runId,omitempty"`
	IsExporting      bool              `json:"isExporting"`
	IsPaused         bool              `json:"isPaused"`
	TotalFiles       int               `json:"totalFiles"`
	CurrentFileIndex int               `json:"currentFileIndex"`
	FileList         []*DocumentRef    `json:"fileList"`
	FolderCount      int               `json:"folderCount,omitempty"`
	ExportFormat     string            `json:"exportType"`
	TypeFormats      map[string]string `json:"typeExportSettings"`
	TargetSubfolder  string            `json:"subfolder"`
	Naming           Naming            `json:"naming"`
	Logs             []string          `json:"logs"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

func NewJobState() *JobState {
	return &JobState{
		FileList:     []*DocumentRef{},
		ExportFormat: "auto",
		TypeFormats:  map[string]string{},
		Logs:         []string{},
	}
}

// AppendLog adds a line to the bounded log ring.
func (s *JobState) AppendLog(line string) {
	s.Logs = append(s.Logs, line)
	if over := len(s.Logs) - LogCapacity; over > 0 {
		s.Logs = append(s.Logs[:0:0], s.Logs[over:]...)
	}
}

type Counts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Success    int `json:"success"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Exported counts documents that reached a terminal state.
func (c Counts) Exported() int {
	return c.Success + c.Failed
}

func (s *JobState) Counts() Counts {
	c := Counts{Total: len(s.FileList)}
	for _, doc := range s.FileList {
		switch doc.Status {
		case StatusPending:
			c.Pending++
		case StatusInProgress:
			c.InProgress++
		case StatusSuccess:
			c.Success++
			if doc.Skipped {
				c.Skipped++
			}
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Clone returns a deep copy safe to hand to readers and persistence.
func (s *JobState) Clone() *JobState {
	out := *s
	out.FileList = make([]*DocumentRef, len(s.FileList))
	for i, doc := range s.FileList {
		d := *doc
		d.FolderPath = append([]string(nil), doc.FolderPath...)
		out.FileList[i] = &d
	}
	out.TypeFormats = make(map[string]string, len(s.TypeFormats))
	for k, v := range s.TypeFormats {
		out.TypeFormats[k] = v
	}
	out.Logs = append([]string(nil), s.Logs...)
	return &out
}

// ManifestEntry is the compact projection persisted beside the full state.
type ManifestEntry struct {
	ID         string     `json:"id" yaml:"id"`
	Title      string     `json:"title" yaml:"title"`
	Kind       string     `json:"type" yaml:"type"`
	FolderPath []string   `json:"folderPath" yaml:"folderPath,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

type Manifest struct {
	Files       []ManifestEntry `json:"fileList" yaml:"files"`
	FolderCount int             `json:"folderCount" yaml:"folderCount"`
}

func (s *JobState) Manifest() Manifest {
	m := Manifest{Files: make([]ManifestEntry, 0, len(s.FileList)), FolderCount: s.FolderCount}
	for _, doc := range s.FileList {
		m.Files = append(m.Files, ManifestEntry{
			ID:         doc.ID,
			Title:      doc.Title,
			Kind:       doc.Kind,
			FolderPath: append([]string(nil), doc.FolderPath...),
			CreatedAt:  doc.CreatedAt,
			UpdatedAt:  doc.UpdatedAt,
		})
	}
	return m
}

// StateFromManifest rebuilds an idle job with every document pending.
func StateFromManifest(m Manifest) *JobState {
	s := NewJobState()
	s.FolderCount = m.FolderCount
	for _, e := range m.Files {
		s.FileList = append(s.FileList, &DocumentRef{
			ID:         e.ID,
			Title:      e.Title,
			Kind:       e.Kind,
			FolderPath: append([]string(nil), e.FolderPath...),
			CreatedAt:  e.CreatedAt,
			UpdatedAt:  e.UpdatedAt,
			Status:     StatusPending,
		})
	}
	s.TotalFiles = len(s.FileList)
	return s
}
