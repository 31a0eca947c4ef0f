package models

import "time"

type Risk struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Level       string `json:"level"`
}

type SaudiLawCompliance struct {
	Recommendations []string `json:"recommendations"`
}

type Compliance struct {
	SaudiLaw SaudiLawCompliance `json:"saudiLaw"`
}

// Analysis is produced by the backend; the client only displays it.
type Analysis struct {
	Summary    string     `json:"summary"`
	KeyPoints  []string   `json:"keyPoints"`
	Risks      []Risk     `json:"risks"`
	Compliance Compliance `json:"compliance"`
}

type Usage struct {
	ViewCount         int        `json:"viewCount"`
	ChatCount         int        `json:"chatCount"`
	TotalInteractions int        `json:"totalInteractions"`
	LastUsed          *time.Time `json:"lastUsed,omitempty"`
}

type Document struct {
	ID           string    `json:"_id"`
	OriginalName string    `json:"originalName"`
	DisplayName  string    `json:"displayName,omitempty"`
	DocumentType string    `json:"documentType"`
	MimeType     string    `json:"mimeType,omitempty"`
	FileSize     int64     `json:"fileSize,omitempty"`
	Language     string    `json:"language,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	IsFavorite   bool      `json:"isFavorite"`
	Analysis     *Analysis `json:"analysis,omitempty"`
	Usage        Usage     `json:"usage"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Title prefers the display name over the uploaded file name.
func (d Document) Title() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.OriginalName
}

type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalCount  int  `json:"totalCount"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

type DocumentPage struct {
	Documents  []Document `json:"documents"`
	Pagination Pagination `json:"pagination"`
}

type DocumentChats struct {
	Document *Document    `json:"document"`
	Chats    []ChatSummary `json:"chats"`
}

type SortField string

const (
	SortLastUsed          SortField = "lastUsed"
	SortCreatedAt         SortField = "createdAt"
	SortOriginalName      SortField = "originalName"
	SortTotalInteractions SortField = "totalInteractions"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// HistoryQuery parameterises a document history fetch.
type HistoryQuery struct {
	Page          int
	Limit         int
	SortBy        SortField
	SortOrder     SortOrder
	DocumentType  string
	FavoritesOnly bool
}

// DefaultHistoryQuery is page 1 of 20, most recently used first.
func DefaultHistoryQuery() HistoryQuery {
	return HistoryQuery{Page: 1, Limit: 20, SortBy: SortLastUsed, SortOrder: SortDesc}
}

// UploadFile describes a local file picked for upload.
type UploadFile struct {
	Name     string
	Size     int64
	MimeType string
	Path     string
}

type AnalysisType string

const (
	AnalysisComprehensive AnalysisType = "comprehensive"
	AnalysisQuick         AnalysisType = "quick"
)
