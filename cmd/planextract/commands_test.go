package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stageOutput = `Basic Info::Line of Coverage::[Medical, Dental, Other]
1::Plans::Medical::PPO 500::$120.00::[2, 3]
2::Plans::Medical::HMO Basic::$90.00::[4]
3::Plans::Dental::DPPO::$30.00::[7]`

func TestParseCmd_Stdin(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs([]string{"parse"})
	cmd.SetIn(strings.NewReader(stageOutput))
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	var got parseOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, []string{"Medical", "Dental"}, got.LOCs)
	assert.Equal(t, []string{"Medical", "Dental"}, got.Order)
	require.Len(t, got.Plans["Medical"], 2)
	assert.Equal(t, "PPO 500", got.Plans["Medical"][0].Name)
	assert.Equal(t, []int{2, 3}, got.Plans["Medical"][0].Pages)
	assert.Contains(t, got.Listing, "3::Plans::Dental::DPPO::$0.00::[7]")
}

func TestParseCmd_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid.txt")
	require.NoError(t, os.WriteFile(path, []byte(stageOutput), 0o644))

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs([]string{"parse", "--file", path})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"PPO 500"`)
}

func TestParseCmd_MissingFile(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"parse", "--file", filepath.Join(t.TempDir(), "missing.txt")})
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestRunCmd_ValidatesBeforeWiring(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"run", "--file", "x.pdf", "--option", "Search"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan_name is required")
}
