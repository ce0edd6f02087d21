package codec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

func sampleData() profiledata.Data {
	return profiledata.Data{
		"main()":                {Count: 1, WallTime: 120_000, CPUTime: 80_000, Memory: 4096},
		"main()==>http.Serve":   {Count: 1, WallTime: 119_500},
		"http.Serve==>handle":   {Count: 42, WallTime: 100_000},
		"handle==>db.Query":     {Count: 84, WallTime: 60_000},
		"handle==>json.Marshal": {Count: 42, WallTime: 0},
	}
}

func TestRoundTrip(t *testing.T) {
	zstdCodec, err := NewZstd()
	require.NoError(t, err)

	packers := map[string]Packer{
		"json": JSON{},
		"zstd": zstdCodec,
	}

	inputs := map[string]profiledata.Data{
		"call graph": sampleData(),
		"empty":      {},
		"unicode":    {"main()==>Überweisung": {Count: 1, WallTime: 1}},
	}

	for pname, p := range packers {
		for iname, in := range inputs {
			t.Run(pname+"/"+iname, func(t *testing.T) {
				b, err := p.Pack(in)
				require.NoError(t, err)

				out, err := p.Unpack(b)
				require.NoError(t, err)
				if diff := cmp.Diff(in, out); diff != "" {
					t.Errorf("round trip mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestJSON_WireFormat(t *testing.T) {
	b, err := JSON{}.Pack(profiledata.Data{
		"main()":       {Count: 1, WallTime: 10},
		"main()==>run": {Count: 2, WallTime: 5, CPUTime: 3},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"main()":       {"ct": 1, "wt": 10},
		"main()==>run": {"ct": 2, "wt": 5, "cpu": 3}
	}`, string(b))
}

func TestJSON_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "xhprof"},
		{name: "null", payload: "null"},
		{name: "list", payload: `[1, 2]`},
		{name: "negative counter", payload: `{"main()": {"ct": -1, "wt": 0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSON{}.Unpack([]byte(tt.payload))
			require.Error(t, err)
		})
	}

	_, err := JSON{}.Pack(nil)
	require.ErrorIs(t, err, profiledata.ErrMalformed)
}

func TestZstd_Compresses(t *testing.T) {
	z, err := NewZstd()
	require.NoError(t, err)

	data := profiledata.Data{}
	for i := 0; i < 200; i++ {
		data.Credit(profiledata.EdgeKey("main()", "worker.process"+string(rune('a'+i%26))), 1, int64(i))
	}

	plain, err := JSON{}.Pack(data)
	require.NoError(t, err)
	packed, err := z.Pack(data)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(plain))

	_, err = z.Unpack(plain)
	require.Error(t, err, "uncompressed payload must not decode")
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		wantExt string
		wantErr bool
	}{
		{name: "", wantExt: "json"},
		{name: "json", wantExt: "json"},
		{name: "ZSTD", wantExt: "json.zst"},
		{name: "msgpack", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, p.Extension())
		})
	}
}

func TestForFile(t *testing.T) {
	p, err := ForFile("/data/app/QWxs/1700000000.json.zst")
	require.NoError(t, err)
	assert.IsType(t, &Zstd{}, p)

	p, err = ForFile("1700000000.json")
	require.NoError(t, err)
	assert.IsType(t, JSON{}, p)

	_, err = ForFile("profile.pb.gz")
	require.Error(t, err)
}
