/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage persists boards. Store keeps items in an embedded SQLite
// database; MemoryStore is the in-process equivalent. Boards move between
// machines as JSON manifests (board.json) written atomically with
// timestamped backups and validated against an embedded schema on import.
// BackupScheduler and Watcher run in the background next to a Store.
package storage
