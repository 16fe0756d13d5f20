// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage defines persistence for run bookkeeping: the dead-letter
// journal of fatally failed documents and the history of run summaries.
//
// Nothing here is on the hot path of a run. The journal receives one write per
// fatal outcome and the run repository one write per run.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return the interfaces declared here:
//
//	journal := badger.NewFailureJournal(backend) // storage.FailureJournal
//
// Internal constructors may return concrete types since they're only used within
// the implementation package.
//
// # Serialization
//
// Values are encoded with mus-go (see serialization.go). Keys are built by the
// backend package.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/var/lib/bulkload", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	journal := badger.NewFailureJournal(backend)
//	entries, err := journal.GetFailures(ctx, "")
//
// Use in tests with in-memory storage:
//
//	backend, err := badger.OpenBackend("", true)
//
// # Thread Safety
//
// All implementations must support concurrent access from multiple goroutines.
package storage
