package contract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateJob(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "processing job",
			body: `{"job_id":"j1","status":"processing"}`,
		},
		{
			name: "completed job with results",
			body: `{"job_id":"j1","status":"completed","summary":"short","word_count":42,"reading_time":"1 min"}`,
		},
		{
			name: "failed job with error",
			body: `{"job_id":"j1","status":"failed","error":"model unavailable","error_details":"upstream 503"}`,
		},
		{
			name:    "completed without summary",
			body:    `{"job_id":"j1","status":"completed","word_count":42,"reading_time":"1 min"}`,
			wantErr: true,
		},
		{
			name:    "completed with empty summary",
			body:    `{"job_id":"j1","status":"completed","summary":"","word_count":42,"reading_time":"1 min"}`,
			wantErr: true,
		},
		{
			name:    "completed with negative word count",
			body:    `{"job_id":"j1","status":"completed","summary":"s","word_count":-1,"reading_time":"1 min"}`,
			wantErr: true,
		},
		{
			name:    "failed without error",
			body:    `{"job_id":"j1","status":"failed"}`,
			wantErr: true,
		},
		{
			name:    "unknown status",
			body:    `{"job_id":"j1","status":"exploded"}`,
			wantErr: true,
		},
		{
			name:    "missing job_id",
			body:    `{"status":"processing"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `<html></html>`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateJob([]byte(tc.body))
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
