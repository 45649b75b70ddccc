package jack

import (
	_ "embed"
	"encoding/json"
)

//go:embed stdlib.json
var content string

// StandardLibraryABI mirrors the nand2tetris OS classes (Math, String, Array, Output,
// Screen, Keyboard, Memory, Sys): for each class, the signature of every subroutine it
// exposes. It carries no statement bodies since the standard library is always linked
// in pre-compiled, never lowered from Jack source by this toolchain.
var StandardLibraryABI = map[string]map[string]Subroutine{}

func init() { json.Unmarshal([]byte(content), &StandardLibraryABI) }
