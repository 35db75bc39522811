package s3url

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want URL
	}{
		{
			name: "nested key",
			raw:  "https://mybucket.s3.us-east-2.amazonaws.com/a/b/c.txt",
			want: URL{
				Protocol: "https:",
				Host:     "mybucket.s3.us-east-2.amazonaws.com",
				Bucket:   "mybucket",
				Region:   "us-east-2",
				Key:      "a/b/c.txt",
			},
		},
		{
			name: "query string",
			raw:  "https://b.s3.us-east-1.amazonaws.com/k?X=1&Y=2",
			want: URL{
				Protocol:   "https:",
				Host:       "b.s3.us-east-1.amazonaws.com",
				Bucket:     "b",
				Region:     "us-east-1",
				Key:        "k",
				Parameters: map[string]string{"X": "1", "Y": "2"},
			},
		},
		{
			name: "value keeps everything after the first equals sign",
			raw:  "https://b.s3.sa-east-1.amazonaws.com/doc.pdf?sig=abc==&empty",
			want: URL{
				Protocol:   "https:",
				Host:       "b.s3.sa-east-1.amazonaws.com",
				Bucket:     "b",
				Region:     "sa-east-1",
				Key:        "doc.pdf",
				Parameters: map[string]string{"sig": "abc==", "empty": ""},
			},
		},
		{
			name: "values are not percent-decoded",
			raw:  "http://b.s3.eu-west-1.amazonaws.com/my%20file?name=a%2Fb",
			want: URL{
				Protocol:   "http:",
				Host:       "b.s3.eu-west-1.amazonaws.com",
				Bucket:     "b",
				Region:     "eu-west-1",
				Key:        "my%20file",
				Parameters: map[string]string{"name": "a%2Fb"},
			},
		},
		{
			name: "host without key",
			raw:  "https://b.s3.us-west-2.amazonaws.com",
			want: URL{
				Protocol: "https:",
				Host:     "b.s3.us-west-2.amazonaws.com",
				Bucket:   "b",
				Region:   "us-west-2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "no slashes", raw: "mybucket.s3.us-east-2.amazonaws.com"},
		{name: "single slash", raw: "https:/mybucket.s3.us-east-2.amazonaws.com"},
		{name: "host with two labels", raw: "https://localhost.localdomain/key"},
		{name: "path style relative", raw: "a/b/c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			assert.ErrorIs(t, err, ErrMalformedURL)
		})
	}
}

func TestURL_ParamAndString(t *testing.T) {
	u, err := Decode("https://b.s3.us-east-1.amazonaws.com/dir/k.txt?X-Amz-Expires=900")
	require.NoError(t, err)

	v, ok := u.Param("X-Amz-Expires")
	assert.True(t, ok)
	assert.Equal(t, "900", v)

	_, ok = u.Param("missing")
	assert.False(t, ok)

	assert.Equal(t, "https://b.s3.us-east-1.amazonaws.com/dir/k.txt", u.String())
}
