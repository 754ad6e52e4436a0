package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(input)
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"evmseg"}, args...))
	return out.String(), err
}

const testInput = `codeid,address,code
1,0x00000000000000000000000000000000000000aa,0x600160020100
2,0x00000000000000000000000000000000000000bb,
3,0x00000000000000000000000000000000000000cc,zz
4,0x00000000000000000000000000000000000000dd,6004560 05b00
`

func TestSegmentRecords(t *testing.T) {
	out, err := runApp(t, testInput)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		`0x0,0x6,"code",0x0`,
		`0x0,0x0,"data",None`,
		`0x0,0x3,"code",0x0`,
		`0x3,0x4,"data",None`,
		`0x4,0x6,"code",0x0`,
	}, "\n")+"\n", out)
}

func TestSegmentRecordsLegacyWithID(t *testing.T) {
	out, err := runApp(t, testInput, "--legacy", "--with-id")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, `1,0x0,0x6,"code"`, lines[0])
	assert.Equal(t, `2,0x0,0x0,"data"`, lines[1])
	assert.Equal(t, `4,0x4,0x6,"code"`, lines[4])
}

func TestSegmentRecordsStrict(t *testing.T) {
	_, err := runApp(t, testInput, "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 3")
}

func TestSegmentRecordsWorkers(t *testing.T) {
	var in strings.Builder
	for i := 0; i < 300; i++ {
		if i%2 == 0 {
			in.WriteString("a,b,600160020100\n")
		} else {
			in.WriteString("a,b,0100\n")
		}
	}
	out, err := runApp(t, in.String(), "--workers", "4", "--progress", "0")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 300)
	for i, line := range lines {
		if i%2 == 0 {
			assert.Equal(t, `0x0,0x6,"code",0x0`, line)
		} else {
			assert.Equal(t, `0x0,0x2,"data",None`, line)
		}
	}
}

func TestSegmentRecordsInputFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(file, []byte("1,x,0x00\n"), 0644))

	out, err := runApp(t, "", "--input", file)
	require.NoError(t, err)
	assert.Equal(t, "0x0,0x1,\"data\",None\n", out)

	_, err = runApp(t, "", "--input", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestSegmentFlagOverrides(t *testing.T) {
	// PUSH1 0 CALLDATALOAD JUMP | JUMPDEST PUSH1 1 POP STOP
	input := "1,x,60003556 5b60015000\n"

	out, err := runApp(t, input)
	require.NoError(t, err)
	assert.Equal(t, "0x0,0x9,\"code\",0x0\n", out)

	out, err = runApp(t, input, "--secondary=false")
	require.NoError(t, err)
	assert.Equal(t, "0x0,0x4,\"code\",0x0\n0x4,0x9,\"data\",None\n", out)
}

func TestDumpAndLoadConfig(t *testing.T) {
	out, err := runApp(t, "", "dumpconfig", "--block-budget", "7", "--known-invalid-jumpdests", "1,3")
	require.NoError(t, err)
	assert.Contains(t, out, "[Segment]")
	assert.Contains(t, out, "MaxBlockExecutions = 7")

	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(file, []byte(out), 0644))

	var cfg evmsegConfig
	require.NoError(t, loadConfig(file, &cfg))
	assert.Equal(t, 7, cfg.Segment.MaxBlockExecutions)
	assert.Equal(t, []uint64{1, 3}, cfg.Segment.KnownInvalidJumpDests)
	assert.True(t, cfg.Segment.SecondaryExecution)
}

func TestLoadConfigUnknownField(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(file, []byte("[Segment]\nBogus = 1\n"), 0644))

	var cfg evmsegConfig
	err := loadConfig(file, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bogus")
}

func TestConfigFileWithOverride(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(file, []byte("[Segment]\nSecondaryExecution = false\n"), 0644))

	input := "1,x,600035565b60015000\n"
	out, err := runApp(t, input, "--config", file)
	require.NoError(t, err)
	assert.Equal(t, "0x0,0x4,\"code\",0x0\n0x4,0x9,\"data\",None\n", out)

	out, err = runApp(t, input, "--config", file, "--secondary")
	require.NoError(t, err)
	assert.Equal(t, "0x0,0x9,\"code\",0x0\n", out)
}

func TestDisasm(t *testing.T) {
	out, err := runApp(t, "", "disasm", "--hex", "0x6004560 05b00")
	require.NoError(t, err)
	assert.Contains(t, out, "unit 0x0: blocks 3")
	assert.Contains(t, out, "[0x3,0x4) code\n")
	assert.Contains(t, out, "[0x4,0x6) code claimed executed")
	assert.Contains(t, out, "0x0004: JUMPDEST")
	assert.Contains(t, out, `0x4,0x6,"code",0x0`)

	out, err = runApp(t, "", "disasm", "--hex", "6004560 05b00", "--dot", "--title", "test")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "digraph evmseg {"))
	assert.Contains(t, out, "u0_b0 -> u0_b2;")
	assert.NotContains(t, out, "u0_b1 ->")

	_, err = runApp(t, "", "disasm")
	require.Error(t, err)
}

func TestStats(t *testing.T) {
	out, err := runApp(t, testInput, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "FIELD")
	assert.Contains(t, out, "Code units")
	assert.Regexp(t, `Records\s*\|\s*3\s*\|`, out)
	assert.Regexp(t, `Empty records\s*\|\s*1\s*\|`, out)
}

func TestDecodeHexString(t *testing.T) {
	b, err := decodeHexString(" 0x60 01\r\n")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x01}, b)

	_, err = decodeHexString("0x600")
	require.Error(t, err)
	_, err = decodeHexString("0xzz")
	require.Error(t, err)
}

func TestEscapeDOT(t *testing.T) {
	assert.Equal(t, `say \"hi\"\nthere\n`, escapeDOT("say \"hi\"\nthere\\n"))
}
