package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	name  string
	res   Result
	err   error
	calls int
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Recognize(_ context.Context, _ []byte) (Result, error) {
	f.calls++
	return f.res, f.err
}

func TestChainStopsAtFirstAcceptable(t *testing.T) {
	primary := &fakeEngine{name: "primary", res: Result{Text: "good text", Confidence: 0.9}}
	secondary := &fakeEngine{name: "secondary", res: Result{Text: "other", Confidence: 0.95}}

	res, err := NewChain(MinConfidence(0.6), primary, secondary).Recognize(t.Context(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "good text", res.Text)
	assert.Equal(t, "primary", res.Engine)
	assert.Equal(t, 0, secondary.calls)
}

func TestChainFallsBackOnLowConfidence(t *testing.T) {
	primary := &fakeEngine{name: "primary", res: Result{Text: "g00d t3xt", Confidence: 0.3}}
	secondary := &fakeEngine{name: "secondary", res: Result{Text: "good text", Confidence: 0.8}}

	res, err := NewChain(MinConfidence(0.6), primary, secondary).Recognize(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, "secondary", res.Engine)
	assert.Equal(t, 1, secondary.calls)
}

func TestChainFallsBackOnEmptyAndError(t *testing.T) {
	primary := &fakeEngine{name: "primary", res: Result{Text: "  ", Confidence: 0.99}}
	broken := &fakeEngine{name: "broken", err: errors.New("engine crashed")}
	last := &fakeEngine{name: "last", res: Result{Text: "found", Confidence: 0.7}}

	res, err := NewChain(MinConfidence(0.6), primary, broken, last).Recognize(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, "found", res.Text)
}

func TestChainKeepsBestEffortText(t *testing.T) {
	primary := &fakeEngine{name: "primary", res: Result{Text: "weak", Confidence: 0.2}}
	secondary := &fakeEngine{name: "secondary", res: Result{Text: "less weak", Confidence: 0.4}}

	res, err := NewChain(MinConfidence(0.6), primary, secondary).Recognize(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, "less weak", res.Text)
	assert.InDelta(t, 0.4, res.Confidence, 1e-9)
}

func TestChainNoText(t *testing.T) {
	primary := &fakeEngine{name: "primary", err: errors.New("missing binary")}
	secondary := &fakeEngine{name: "secondary", res: Result{}}

	_, err := NewChain(MinConfidence(0.6), primary, secondary).Recognize(t.Context(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoText)
	assert.Contains(t, err.Error(), "missing binary")
}

type recordingRunner struct {
	name  string
	args  []string
	stdin []byte
	out   []byte
	err   error
	hook  func(args []string)
}

func (r *recordingRunner) Run(_ context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	r.name, r.args, r.stdin = name, args, stdin
	if r.hook != nil {
		r.hook(args)
	}
	return r.out, r.err
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tHello\n" +
	"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t80\tworld\n" +
	"5\t1\t1\t1\t2\t1\t0\t0\t10\t10\t70\tSecond\n" +
	"5\t1\t1\t1\t2\t2\t0\t0\t10\t10\t-1\t \n"

func TestTesseractRecognize(t *testing.T) {
	runner := &recordingRunner{out: []byte(sampleTSV)}
	engine := NewTesseract("/usr/bin/tesseract", "eng", runner)

	res, err := engine.Recognize(t.Context(), []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nSecond", res.Text)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.Equal(t, "/usr/bin/tesseract", runner.name)
	assert.Equal(t, []string{"stdin", "stdout", "-l", "eng", "tsv"}, runner.args)
	assert.Equal(t, []byte("png-bytes"), runner.stdin)
}

type fakeTika struct {
	contentType string
	language    string
}

func (f *fakeTika) OCRImage(_ context.Context, _ []byte, contentType, language string) (string, error) {
	f.contentType, f.language = contentType, language
	return "tika text", nil
}

func TestTikaEngineUsesFixedConfidence(t *testing.T) {
	client := &fakeTika{}
	png := []byte("\x89PNG\r\n\x1a\n0000")
	res, err := NewTikaEngine(client, "eng", 0.8).Recognize(t.Context(), png)
	require.NoError(t, err)
	assert.Equal(t, "tika text", res.Text)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.Equal(t, "image/png", client.contentType)
	assert.Equal(t, "eng", client.language)
}

func TestPdftoppmRenderPage(t *testing.T) {
	runner := &recordingRunner{}
	runner.hook = func(args []string) {
		root := args[len(args)-1]
		require.NoError(t, os.WriteFile(root+".png", []byte("rendered"), 0o600))
	}
	r := NewPdftoppm("pdftoppm", 150, runner)

	pdf := filepath.Join(t.TempDir(), "doc.pdf")
	img, err := r.RenderPage(t.Context(), pdf, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("rendered"), img)
	assert.Equal(t, []string{"-f", "3", "-l", "3", "-r", "150", "-png", "-singlefile", pdf}, runner.args[:9])
}
