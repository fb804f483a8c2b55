package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventnexus/autopilot/internal/domain"
)

type fakeS3 struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.keys = append(f.keys, *in.Bucket+"/"+*in.Key)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveWritesDatedKey(t *testing.T) {
	fake := &fakeS3{}
	a := New(fake, "ops-archive", "/autopilot/runs/")
	run := domain.RunSummary{
		RunID:              "run-1",
		Trigger:            domain.TriggerManual,
		StartedAt:          time.Date(2026, 3, 9, 23, 59, 0, 0, time.FixedZone("PST", -8*3600)),
		CampaignsEvaluated: 2,
	}

	require.NoError(t, a.Archive(context.Background(), run))
	require.Len(t, fake.keys, 1)
	assert.Equal(t, "ops-archive/autopilot/runs/2026/03/10/run-1.json", fake.keys[0])

	var decoded domain.RunSummary
	require.NoError(t, json.Unmarshal(fake.bodies[0], &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, 2, decoded.CampaignsEvaluated)
}

func TestArchiveWrapsError(t *testing.T) {
	boom := errors.New("access denied")
	a := New(&fakeS3{err: boom}, "b", "p")

	err := a.Archive(context.Background(), domain.RunSummary{RunID: "run-2"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "run-2")
}
