// Package testing drives a lattice engine headlessly for tests.
//
// # Quick Start
//
// Create a tester, build views, pump a tick and make assertions:
//
//	func TestSend(t *testing.T) {
//	    tester := latticetest.New(t, engine.Options{})
//	    tester.LoadScene(`
//	views:
//	  - type: button
//	    id: send
//	    text: Send
//	`)
//	    tester.Pump()
//
//	    tester.Tap(latticetest.ByID("send"))
//	    tester.Pump()
//	}
//
// Every painted frame and every accessibility snapshot is recorded, so
// tests can assert on what a real renderer would have received.
//
// # Snapshot Testing
//
// Compare the last painted frame with a golden file:
//
//	tester.CaptureSnapshot().MatchesFile(t, "testdata/inbox.snapshot.json")
//
// Update snapshots with:
//
//	LATTICE_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Transitions
//
// The tester installs a fake clock. Advance it to step transitions:
//
//	tester.Clock().Advance(100 * time.Millisecond)
//	tester.Pump()
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import latticetest "github.com/go-drift/lattice/pkg/testing"
package testing
