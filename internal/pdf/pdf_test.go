package pdf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextRejectsNonPDF(t *testing.T) {
	t.Parallel()

	e := New(nil)
	_, err := e.Text([]byte("<html>not a pdf</html>"))
	require.Error(t, err)
}

func TestTextSurvivesTruncatedPDF(t *testing.T) {
	t.Parallel()

	// A header with nothing behind it must not panic through to the caller.
	e := New(nil)
	_, err := e.Text([]byte("%PDF-1.7\n1 0 obj\n<<"))
	require.Error(t, err)
}

func TestMetadataDegradesToEmpty(t *testing.T) {
	t.Parallel()

	e := New(nil)
	meta := e.Metadata([]byte("garbage"))
	require.NotNil(t, meta)
	require.Empty(t, meta)
}
