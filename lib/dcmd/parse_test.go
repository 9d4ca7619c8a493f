package dcmd

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseArgDefs(t *testing.T) {
	cases := []struct {
		name         string
		input        string
		defs         []*ArgDef
		expectedArgs []*ParsedArg
	}{
		{"simple int", "15", []*ArgDef{{Type: Int}}, []*ParsedArg{{Value: int64(15)}}},
		{"simple string", "hello", []*ArgDef{{Type: String}}, []*ParsedArg{{Value: "hello"}}},
		{"int rest", "15 the rest of it", []*ArgDef{{Type: Int}, {Type: String}}, []*ParsedArg{{Value: int64(15)}, {Value: "the rest of it"}}},
		{"rest keeps quotes", "a b `c d`", []*ArgDef{{Type: String}, {Type: String}}, []*ParsedArg{{Value: "a"}, {Value: "b `c d`"}}},
		{"string int", "hey_man 30", []*ArgDef{{Type: String}, {Type: Int}}, []*ParsedArg{{Value: "hey_man"}, {Value: int64(30)}}},
		{"quoted strings", "first `middle quoted` last", []*ArgDef{{Type: String}, {Type: String}, {Type: String}}, []*ParsedArg{{Value: "first"}, {Value: "middle quoted"}, {Value: "last"}}},
		{"escape space", "first\\ still\\ first second", []*ArgDef{{Type: String}, {Type: String}}, []*ParsedArg{{Value: "first still first"}, {Value: "second"}}},
		{"escape container", "`first \\` still first` second", []*ArgDef{{Type: String}, {Type: String}}, []*ParsedArg{{Value: "first ` still first"}, {Value: "second"}}},
		{"keep escape character", "first\\n second", []*ArgDef{{Type: String}, {Type: String}}, []*ParsedArg{{Value: "first\\n"}, {Value: "second"}}},
	}

	for i, v := range cases {
		t.Run(fmt.Sprintf("#%d-%s", i, v.name), func(t *testing.T) {
			d := new(Data)
			err := ParseArgDefs(v.defs, 0, nil, d, SplitArgs(v.input))

			if err != nil {
				t.Fatal("ParseArgDefs returned a bad error", err)
			}

			// Check if we got the expected output
			for i, ea := range v.expectedArgs {
				if i >= len(d.Args) {
					t.Fatal("Unexpected end of parsed args")
				}

				if !assert.Equal(t, ea.Value, d.Args[i].Value, "Should be equal") {
					for ei, ga := range d.Args {
						t.Errorf("Parsed arg[%d]: %v", ei, ga.Value)
					}
				}
			}
		})
	}
}

var Sink int

func BenchmarkSplitArgs(b *testing.B) {
	benchmarks := []struct {
		name string
		in   string
	}{
		{"very short input", "-a"},
		{"short input", "-repeat 1h tea"},
		{"medium-length input", "warn @someone spamming in general -ddays 2"},
		{"medium-length input with quoted text", `rr create "pick your colours" unique`},
		{"long input", `remindme 3 days 4 hours "water the lemon tree, then check on the \"new\" seedlings" -repeat 1d`},
	}
	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				Sink += len(SplitArgs(bm.in))
			}
		})
	}
}

func TestParseSwitches(t *testing.T) {
	cases := []struct {
		name         string
		input        string
		defs         []*ArgDef
		expectedArgs []*ParsedArg
	}{
		{"simple int", "-i 15", []*ArgDef{{Name: "i", Type: Int}}, []*ParsedArg{{Value: int64(15)}}},
		{"simple string", "-s hello", []*ArgDef{{Name: "s", Type: String}}, []*ParsedArg{{Value: "hello"}}},
		{"simple string, long switch", "-string hello", []*ArgDef{{Name: "string", Type: String}}, []*ParsedArg{{Value: "hello"}}},
		{"bool switch", "-a", []*ArgDef{{Name: "a"}}, []*ParsedArg{{Value: true}}},
		{"string int", "-s hey_man -i 30", []*ArgDef{{Name: "s", Type: String}, {Name: "i", Type: Int}}, []*ParsedArg{{Value: "hey_man"}, {Value: int64(30)}}},
		{"quoted strings", "-s1 first -s2 `middle quoted` -s3 last", []*ArgDef{{Name: "s1", Type: String}, {Name: "s2", Type: String}, {Name: "s3", Type: String}}, []*ParsedArg{{Value: "first"}, {Value: "middle quoted"}, {Value: "last"}}},
	}

	for i, v := range cases {
		t.Run(fmt.Sprintf("#%d-%s", i, v.name), func(t *testing.T) {
			d := new(Data)

			_, err := ParseSwitches(v.defs, d, SplitArgs(v.input))
			if err != nil {
				t.Fatal("ParseArgDefs returned a bad error", err)
			}

			// Check if we got the expected output
			for i, ea := range v.expectedArgs {
				assert.Equal(t, ea.Value, d.Switches[v.defs[i].Name].Value, "Should be equal")
			}
		})
	}
}

func TestSwitchesAreRemovedFromArgs(t *testing.T) {
	d := new(Data)
	rest, err := ParseSwitches([]*ArgDef{{Name: "repeat", Type: String}, {Name: "a"}}, d, SplitArgs("1h -repeat 1d take a break -a"))
	if !assert.NoError(t, err) {
		return
	}

	assert.Equal(t, "1d", d.Switch("repeat").Str())
	assert.True(t, d.Switch("a").Bool())

	words := make([]string, len(rest))
	for i, v := range rest {
		words[i] = v.Str
	}
	assert.Equal(t, []string{"1h", "take", "a", "break"}, words)

	_, err = ParseSwitches([]*ArgDef{{Name: "repeat", Type: String}}, d, SplitArgs("tea -repeat"))
	assert.True(t, IsUserError(err))
}

func TestFindCombo(t *testing.T) {
	defs := []*ArgDef{{Name: "limit", Type: Int}, {Name: "user", Type: UserID}}
	combos := [][]int{{0}, {0, 1}, {1}, {1, 0}, {}}

	combo, ok := FindCombo(defs, combos, SplitArgs("<@105487308693757952> 10"))
	assert.True(t, ok)
	assert.Equal(t, []int{1, 0}, combo)

	combo, ok = FindCombo(defs, combos, SplitArgs("10"))
	assert.True(t, ok)
	assert.Equal(t, []int{0}, combo)

	combo, ok = FindCombo(defs, combos, nil)
	assert.True(t, ok)
	assert.Equal(t, []int{}, combo)
}
