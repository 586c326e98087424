// Package sandbox runs untrusted submitted code under a wall-clock bound
// and returns the captured output.
//
// Two execution modes exist per language. Native mode writes the snippet to
// a throwaway working directory and runs the configured interpreter with a
// scrubbed environment; it is opt-in per language since it grants real
// interpretation. Simulation mode, the default, extracts literal
// print-statement arguments by pattern matching and never interprets the
// code; its results carry Simulated=true so callers can label the degraded
// fidelity rather than present it as real execution.
//
// Every call is an isolated unit of work: faults in the snippet are captured
// into the result, a run that exceeds the bound is abandoned (its later
// output discarded), and nothing an execution does can touch session state.
package sandbox
