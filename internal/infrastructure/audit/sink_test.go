package audit

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/ecofridge/server/internal/infrastructure/config"
	"github.com/ecofridge/server/internal/ports/outbound"
	apperrors "github.com/ecofridge/server/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func entry(text string) outbound.AuditEntry {
	return outbound.AuditEntry{
		Operation: outbound.OperationRecipeGeneration,
		Kind:      outbound.AuditResponses,
		Text:      text,
		At:        time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestFileSink_WritesPartitionedFiles(t *testing.T) {
	root := t.TempDir()
	sink, err := NewFileSink(root)
	require.NoError(t, err)

	require.NoError(t, sink.Record(context.Background(), entry(`{"recipe_name":"Soup"}`)))
	require.NoError(t, sink.Record(context.Background(), entry("second")))

	dir := filepath.Join(root, "recipe_instructions_generation", "responses")
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 2, "entries written in the same instant must not overwrite each other")

	var contents []string
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f.Name(), "log_20240301T123000"))
		assert.True(t, strings.HasSuffix(f.Name(), ".txt"))
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		require.NoError(t, err)
		contents = append(contents, string(data))
	}
	assert.ElementsMatch(t, []string{"{\"recipe_name\":\"Soup\"}\n", "second\n"}, contents)
}

func TestFileSink_WritesAfterCancel(t *testing.T) {
	root := t.TempDir()
	sink, err := NewFileSink(root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	failure := entry("upstream timed out")
	failure.Kind = outbound.AuditErrors

	require.NoError(t, sink.Record(ctx, failure))

	files, err := os.ReadDir(filepath.Join(root, "recipe_instructions_generation", "errors"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestFileSink_RejectsIncompleteEntry(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, sink.Record(context.Background(), outbound.AuditEntry{Kind: outbound.AuditPrompts}))
}

type fakeS3 struct {
	s3iface.S3API
	mu   sync.Mutex
	puts map[string]string
	err  error
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_UsesFileLayout(t *testing.T) {
	client := &fakeS3{}
	sink := NewS3SinkWithClient(client, "bucket", "audit", zaptest.NewLogger(t))

	e := entry("prompt text")
	e.Kind = outbound.AuditPrompts
	e.Operation = outbound.OperationPointsAnalysis
	require.NoError(t, sink.Record(context.Background(), e))

	require.Len(t, client.puts, 1)
	for key, body := range client.puts {
		assert.True(t, strings.HasPrefix(key, "bucket/audit/points_analysis/prompts/log_20240301T123000"), key)
		assert.Equal(t, "prompt text\n", body)
	}
}

func TestS3Sink_PropagatesUploadErrors(t *testing.T) {
	sink := NewS3SinkWithClient(&fakeS3{err: assert.AnError}, "bucket", "", zaptest.NewLogger(t))

	assert.ErrorIs(t, sink.Record(context.Background(), entry("x")), assert.AnError)
}

func TestNew_SelectsBackend(t *testing.T) {
	logger := zaptest.NewLogger(t)

	sink, err := New(config.AuditConfig{Backend: config.AuditNone}, logger)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, sink)

	sink, err = New(config.AuditConfig{Backend: config.AuditFile, Dir: t.TempDir()}, logger)
	require.NoError(t, err)
	assert.IsType(t, &FileSink{}, sink)

	_, err = New(config.AuditConfig{Backend: config.AuditS3}, logger)
	assert.True(t, apperrors.Is(err, apperrors.CodeConfiguration))

	_, err = New(config.AuditConfig{Backend: "ftp"}, logger)
	assert.True(t, apperrors.Is(err, apperrors.CodeConfiguration))
}
