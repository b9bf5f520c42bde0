package adapters

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMembership(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected []string
		wantErr  bool
	}{
		{
			name:     "success: numeric codes are zero padded",
			input:    "代码,名称\n700,腾讯控股\n5,汇丰控股\n9988,阿里巴巴-W\n",
			expected: []string{"0700.HK", "0005.HK", "9988.HK"},
		},
		{
			name:     "success: header with BOM and english name",
			input:    "\ufeffCode,Name\n1,CKH\n\n2,CLP\n",
			expected: []string{"0001.HK", "0002.HK"},
		},
		{
			name:     "success: blank code skipped",
			input:    "代码\n700\n \n",
			expected: []string{"0700.HK"},
		},
		{
			name:     "success: symbol column verbatim",
			input:    ",Symbol,Security\n0,MMM,3M\n1,BRK.B,Berkshire Hathaway\n",
			expected: []string{"MMM", "BRK.B"},
		},
		{
			name:    "failure: no usable column",
			input:   "ticker,name\nAAPL,Apple\n",
			wantErr: true,
		},
		{
			name:    "failure: non numeric code",
			input:   "代码\n700\nabc\n",
			wantErr: true,
		},
		{
			name:    "failure: empty file",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := readMembership(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMembershipCSV_Codes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hsi.csv")
	require.NoError(t, os.WriteFile(path, []byte("代码\n700\n388\n"), 0o644))

	got, err := NewMembershipCSV(path).Codes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0700.HK", "0388.HK"}, got)

	_, err = NewMembershipCSV(filepath.Join(t.TempDir(), "missing.csv")).Codes(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
