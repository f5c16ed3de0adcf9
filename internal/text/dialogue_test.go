package text

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialogueLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("speaker: line %d", i)
	}
	return strings.Join(lines, "\n")
}

func TestChunkDialogue(t *testing.T) {
	t.Run("Sliding Windows", func(t *testing.T) {
		chunks := ChunkDialogue(dialogueLines(10), 4, 2)

		require.Len(t, chunks, 5)
		for i, c := range chunks {
			assert.True(t, strings.HasPrefix(c, fmt.Sprintf("speaker: line %d", i*2)), "chunk %d", i)
		}
		assert.Equal(t, "speaker: line 8\nspeaker: line 9", chunks[4])
		assert.Len(t, strings.Split(chunks[0], "\n"), 4)
	})

	t.Run("Short Dialogue Single Chunk", func(t *testing.T) {
		chunks := ChunkDialogue("  hi \n\n\n there\r\nbye  ", 4, 2)
		assert.Equal(t, []string{"hi\nthere\nbye"}, chunks)
	})

	t.Run("Exact Window", func(t *testing.T) {
		chunks := ChunkDialogue(dialogueLines(4), 4, 2)
		assert.Len(t, chunks, 1)
	})

	t.Run("Overlap Not Below Window Steps By One", func(t *testing.T) {
		chunks := ChunkDialogue(dialogueLines(6), 3, 5)
		require.NotEmpty(t, chunks)
		assert.True(t, strings.HasPrefix(chunks[1], "speaker: line 1"))
	})

	t.Run("Blank Input", func(t *testing.T) {
		assert.Empty(t, ChunkDialogue("", 4, 2))
		assert.Empty(t, ChunkDialogue(" \n \n", 4, 2))
	})
}

func TestDispatcher_Dispatch(t *testing.T) {
	d := NewDispatcher(1000, 120)

	t.Run("Resume Uses Sections", func(t *testing.T) {
		chunks := d.Dispatch(SourceResume, "\nОпыт работы\nDid X\n\nОбразование\nMSU")
		assert.Len(t, chunks, 2)
	})

	t.Run("Vacancy Uses Sections", func(t *testing.T) {
		chunks := d.Dispatch(SourceVacancy, "Backend developer\nНавыки\nGo")
		assert.Equal(t, []string{"Backend developer", "Навыки\nGo"}, chunks)
	})

	t.Run("Dialogue Uses Utterance Windows", func(t *testing.T) {
		chunks := d.Dispatch(SourceDialogue, dialogueLines(10))
		assert.Len(t, chunks, 5)
	})

	t.Run("Other Types Use Fixed Windows", func(t *testing.T) {
		small := NewDispatcher(4, 0)
		chunks := small.Dispatch(SourceType("note"), "abcdefgh")
		assert.Equal(t, []string{"abcd", "efgh"}, chunks)
	})

	t.Run("Empty Content", func(t *testing.T) {
		assert.Empty(t, d.Dispatch(SourceResume, ""))
	})
}

func TestSourceType_Valid(t *testing.T) {
	assert.True(t, SourceResume.Valid())
	assert.True(t, SourceVacancy.Valid())
	assert.True(t, SourceDialogue.Valid())
	assert.False(t, SourceType("note").Valid())
	assert.False(t, SourceType("").Valid())
}
