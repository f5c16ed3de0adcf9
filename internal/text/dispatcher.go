package text

// SourceType is the kind of document being indexed.
type SourceType string

const (
	SourceResume   SourceType = "resume"
	SourceVacancy  SourceType = "vacancy"
	SourceDialogue SourceType = "dialogue"
)

func (t SourceType) Valid() bool {
	switch t {
	case SourceResume, SourceVacancy, SourceDialogue:
		return true
	}
	return false
}

// Dispatcher picks the chunking strategy for a document type.
type Dispatcher struct {
	Size    int
	Overlap int
	Headers []string
}

func NewDispatcher(size, overlap int) *Dispatcher {
	return &Dispatcher{Size: size, Overlap: overlap, Headers: DefaultHeaders}
}

// Dispatch returns the chunks for content. An empty result means there is
// nothing to index.
func (d *Dispatcher) Dispatch(t SourceType, content string) []string {
	if content == "" {
		return nil
	}
	switch t {
	case SourceResume, SourceVacancy:
		return ChunkStructured(content, d.Size, d.Overlap, d.Headers)
	case SourceDialogue:
		return ChunkDialogue(content, DialogueWindow, DialogueOverlap)
	default:
		return ChunkText(content, d.Size, d.Overlap)
	}
}
