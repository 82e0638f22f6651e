package strategy

import "os/exec"

// execLookPath is a thin indirection over exec.LookPath so tests can stub
// interpreter resolution without requiring the named interpreter to
// actually be installed on the test machine.
var execLookPath = exec.LookPath
