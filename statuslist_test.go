package statuslist

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatusList(t *testing.T) {
	type args struct {
		bits Bits
		size int
	}
	tests := []struct {
		name    string
		args    args
		wantSl  func() *StatusList
		wantErr error
	}{
		{
			"PASS: can generate",
			args{
				bits: Bits1,
				size: 16,
			},
			func() *StatusList {
				return &StatusList{
					Bits1,
					"H4sIAMo_jGQC_2NgAAD_EtlBAgAAAA",
					make([]Status, 16),
				}
			},
			nil,
		},
		{
			"FAIL: size too small",
			args{
				bits: Bits1,
				size: 0,
			},
			func() *StatusList {
				return nil
			},
			fmt.Errorf("%w: must be between %d and %d, got %d", ErrSize, minSize, MaxSize, 0),
		},
		{
			"FAIL: size too big",
			args{
				bits: Bits2,
				size: MaxSize + 1,
			},
			func() *StatusList {
				return nil
			},
			fmt.Errorf("%w: must be between %d and %d, got %d", ErrSize, minSize, MaxSize, MaxSize+1),
		},
		{
			"FAIL: invalid bit size",
			args{
				bits: Bits(7),
				size: 16,
			},
			func() *StatusList {
				return nil
			},
			fmt.Errorf("%w: %d, expected 1, 2, 4 or 8", ErrInvalidBits, 7),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSl, err := NewStatusList(tt.args.bits, tt.args.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantSl(), gotSl)
			} else {
				assert.Error(t, err)
				assert.Equal(t, tt.wantErr.Error(), err.Error())
				assert.Nil(t, gotSl)
			}
		})
	}
}

func TestNewStatusListFromValues(t *testing.T) {
	values := []Status{1, 0, 0, 1, 1, 1, 0, 1, 1, 1, 0, 0, 0, 1, 0, 1}
	sl, err := NewStatusListFromValues(Bits1, values)
	require.NoError(t, err)
	assert.Equal(t, "H4sIAMo_jGQC_9u5GABc9QE7AgAAAA", sl.EncodedList)
	assert.Equal(t, values, sl.Values())

	// the list owns its statuses
	values[0] = 0
	s, err := sl.Get(0)
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, s)

	_, err = NewStatusListFromValues(Bits1, []Status{0, 2})
	assert.ErrorIs(t, err, ErrValueOutOfRange)

	_, err = NewStatusListFromValues(Bits1, nil)
	assert.ErrorIs(t, err, ErrSize)
}

func TestStatusList_Update(t *testing.T) {

	ref := func(idx int, uri string) StatusReference {
		return NewStatusReference(uri, idx)
	}

	type args struct {
		revoke []int
		reset  []int
	}
	tests := []struct {
		name     string
		slFn     func() *StatusList
		args     args
		expected map[StatusReference]bool
		wantErr  error
	}{
		{
			"PASS: revocations",
			func() *StatusList {
				sl, _ := NewStatusList(Bits1, 131072)
				return sl
			},
			args{
				[]int{10, 1231, 1, 31312},
				[]int{10, 54312, 12313, 122311},
			},
			map[StatusReference]bool{
				ref(10, "https://example.com/statuslists/0"):     false,
				ref(1, "https://example.com/statuslists/0"):      true,
				ref(2, "https://example.com/statuslists/0"):      false,
				ref(1231, "https://example.com/statuslists/0"):   true,
				ref(31312, "https://example.com/statuslists/0"):  true,
				ref(54312, "https://example.com/statuslists/0"):  false,
				ref(12313, "https://example.com/statuslists/0"):  false,
				ref(122311, "https://example.com/statuslists/0"): false,
			},
			nil,
		},
		{
			"PASS: revocations with 2 bits",
			func() *StatusList {
				sl, _ := NewStatusList(Bits2, 1000)
				return sl
			},
			args{
				[]int{0, 999},
				[]int{0},
			},
			map[StatusReference]bool{
				ref(0, "https://example.com/statuslists/1"):   false,
				ref(999, "https://example.com/statuslists/1"): true,
			},
			nil,
		},
		{
			"FAIL: index out of range",
			func() *StatusList {
				sl, _ := NewStatusList(Bits1, 8)
				return sl
			},
			args{
				[]int{8},
				[]int{-1},
			},
			map[StatusReference]bool{
				ref(8, "https://example.com/statuslists/2"): false,
			},
			ErrIndexOutOfRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sl := tt.slFn()
			// revocation
			if err := sl.Revoke(tt.args.revoke...); tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			// resets
			if err := sl.Reset(tt.args.reset...); tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			// verification
			for r, status := range tt.expected {
				if isIt, err := sl.IsRevoked(r); tt.wantErr == nil {
					assert.NoError(t, err)
					assert.Equal(t, status, isIt)
				} else {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			}
			// the encoded list follows the statuses
			got, err := Decode(sl.EncodedList, sl.BitSize, WithLength(sl.Len()))
			require.NoError(t, err)
			assert.Equal(t, sl.Values(), got)
		})
	}
}

func TestStatusList_Suspend(t *testing.T) {
	sl, err := NewStatusList(Bits2, 16)
	require.NoError(t, err)

	require.NoError(t, sl.Suspend(3, 4))
	require.NoError(t, sl.Set(5, StatusApplicationSpecific))

	for idx, want := range map[int]Status{2: StatusValid, 3: StatusSuspended, 4: StatusSuspended, 5: StatusApplicationSpecific} {
		got, err := sl.Status(NewStatusReference("https://example.com/statuslists/1", idx))
		require.NoError(t, err)
		assert.Equal(t, want, got, "index %d", idx)
	}

	revoked, err := sl.IsRevoked(NewStatusReference("https://example.com/statuslists/1", 3))
	require.NoError(t, err)
	assert.False(t, revoked)

	t.Run("FAIL: suspend a 1 bit list", func(t *testing.T) {
		sl, err := NewStatusList(Bits1, 16)
		require.NoError(t, err)
		before := sl.EncodedList

		err = sl.Suspend(3)
		assert.ErrorIs(t, err, ErrValueOutOfRange)
		assert.Equal(t, "value 2 is too large for bit size 1", err.Error())
		assert.Equal(t, before, sl.EncodedList)
		assert.Equal(t, make([]Status, 16), sl.Values())
	})

	t.Run("FAIL: one bad index changes nothing", func(t *testing.T) {
		sl, err := NewStatusList(Bits2, 16)
		require.NoError(t, err)

		err = sl.Revoke(1, 2, 16)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		assert.Equal(t, make([]Status, 16), sl.Values())
	})
}

func TestStatusList_JSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    []Status
		wantErr error
	}{
		{
			"PASS: draft example with 1 bit",
			`{"bits":1,"lst":"H4sIAMo_jGQC_9u5GABc9QE7AgAAAA"}`,
			[]Status{1, 0, 0, 1, 1, 1, 0, 1, 1, 1, 0, 0, 0, 1, 0, 1},
			nil,
		},
		{
			"PASS: draft example with 2 bits",
			`{"bits":2,"lst":"H4sIAMo_jGQC_zvp8hMAZLRLMQMAAAA"}`,
			[]Status{1, 2, 0, 3, 0, 1, 0, 1, 1, 2, 3, 3},
			nil,
		},
		{
			"FAIL: unsupported bit size",
			`{"bits":3,"lst":"H4sIAMo_jGQC_zvp8hMAZLRLMQMAAAA"}`,
			nil,
			ErrInvalidBits,
		},
		{
			"FAIL: corrupt list",
			`{"bits":1,"lst":"H4sIAMo_jGQC_9u5GABc9f47AgAAAA"}`,
			nil,
			ErrDecompression,
		},
		{
			"FAIL: empty list",
			`{"bits":1,"lst":"H4sIAMo_jGQC_wMAAAAAAAAAAAA"}`,
			nil,
			ErrSize,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sl, err := NewStatusListFromJSON([]byte(tt.data))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, sl)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sl.Values())

			data, err := json.Marshal(sl)
			require.NoError(t, err)
			assert.JSONEq(t, tt.data, string(data))
		})
	}

	_, err := NewStatusListFromJSON([]byte(`{"bits":"one"}`))
	assert.Error(t, err)
}

func TestStatusList_EncodeWith(t *testing.T) {
	sl, err := NewStatusList(Bits4, 100)
	require.NoError(t, err)
	require.NoError(t, sl.Set(42, 9))

	got, err := sl.EncodeWith(DefaultCodec)
	require.NoError(t, err)
	assert.Equal(t, sl.EncodedList, got)

	c := NewCodec(WithLevel(5))
	got, err = sl.EncodeWith(c)
	require.NoError(t, err)
	values, err := c.Decode(got, Bits4)
	require.NoError(t, err)
	assert.Equal(t, sl.Values(), values)
}

func TestNewStatusListFromJSON_tooLarge(t *testing.T) {
	// one byte more than MaxSize statuses of 1 bit
	lst := gzipZeros(t, PackedLen(MaxSize, Bits1)+1)
	data, err := json.Marshal(map[string]any{"bits": 1, "lst": lst})
	require.NoError(t, err)

	sl, err := NewStatusListFromJSON(data)
	assert.ErrorIs(t, err, ErrDecompression)
	assert.Nil(t, sl)
}
