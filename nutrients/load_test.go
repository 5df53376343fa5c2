package nutrients

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrivision/storage"
)

func TestParseFoodNames(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []FoodRecord
	}{
		{
			name:  "with header",
			input: "FOODID;FOODNAME;FOODTYPE\n1;APPLE;FOOD\n2;BANANA;FOOD\n",
			want:  []FoodRecord{{ID: "1", CanonicalName: "APPLE"}, {ID: "2", CanonicalName: "BANANA"}},
		},
		{
			name:  "header with other column order and BOM",
			input: "\ufeffFOODID;FOODTYPE;FOODNAME\n7;FOOD;TOMATO\n",
			want:  []FoodRecord{{ID: "7", CanonicalName: "TOMATO"}},
		},
		{
			name:  "no header",
			input: "1;APPLE\n;MISSING ID\n3;\n",
			want:  []FoodRecord{{ID: "1", CanonicalName: "APPLE"}},
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFoodNames(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseComponentValues(t *testing.T) {
	input := strings.Join([]string{
		"FOODID;EUFDNAME;BESTLOC;ACQTYPE",
		"1;ENERC;200;A",
		"1;PROT;0,3;A",
		"1;FAT;0.1;A",
		"1;CHOAVL;10.1;A",
		"1;FIBC;2.2;A",
		"1;VITC;5;A",
		"2;ENERC;;A",
		"2;PROT;1.1;A",
	}, "\n")

	got, err := ParseComponentValues(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 2)

	apple := got["1"]
	require.NotNil(t, apple.Calories)
	assert.Equal(t, 47.8, *apple.Calories)
	assert.Equal(t, 0.3, *apple.Protein)
	assert.Equal(t, 0.1, *apple.Fat)
	assert.Equal(t, 10.1, *apple.Carbohydrates)
	assert.Equal(t, 2.2, *apple.Fiber)

	banana := got["2"]
	assert.Nil(t, banana.Calories, "an empty value stays unknown")
	assert.Equal(t, 1.1, *banana.Protein)
}

func TestLoad(t *testing.T) {
	// "Ä" (0xC4) in ISO-8859-1
	names := storage.NewTestState([]byte("FOODID;FOODNAME\n1;OMENA\n2;P\xc4\xc4RYN\xc4\n"))
	components := storage.NewTestState([]byte("FOODID;EUFDNAME;BESTLOC\n1;ENERC;100\n"))

	ix, err := Load(context.Background(), names, components, "latin1")
	require.NoError(t, err)
	require.Equal(t, 2, ix.Len())
	assert.Equal(t, "PÄÄRYNÄ", ix.Foods()[1].CanonicalName)

	p, ok := ix.Profile("1")
	require.True(t, ok)
	assert.Equal(t, 23.9, *p.Calories)
}

func TestLoad_Errors(t *testing.T) {
	ok := storage.NewTestState([]byte("1;APPLE\n"))
	boom := storage.NewTestStateWithError()

	tests := []struct {
		name        string
		names       storage.State
		components  storage.State
		encoding    string
		errContains string
	}{
		{name: "names fail", names: boom, components: ok, encoding: "utf8", errContains: "read food names"},
		{name: "components fail", names: ok, components: boom, encoding: "utf8", errContains: "read component values"},
		{name: "bad encoding", names: ok, components: ok, encoding: "ebcdic", errContains: "unsupported reference encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), tt.names, tt.components, tt.encoding)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}
