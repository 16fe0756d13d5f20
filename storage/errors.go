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

package storage

import "errors"

var (
	// ErrNotFound is returned when no journal entry or run summary matches.
	ErrNotFound = errors.New("record not found")

	// ErrStorageClosed is returned by every operation on a closed journal.
	ErrStorageClosed = errors.New("journal is closed")

	// ErrSerializationFailed wraps decode failures of stored entries, including truncated values.
	ErrSerializationFailed = errors.New("serialization failed")
)
