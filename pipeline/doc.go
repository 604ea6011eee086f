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

// Package pipeline runs the fetch, clean, persist, embed and index stages.
//
// An Orchestrator executes one run at a time. Requests that arrive while a
// run is in progress are rejected rather than queued. Stages run strictly
// in sequence; item-level failures are absorbed by each stage's fallback
// records, while a stage-level failure ends the run and is recorded in Stats.
//
// Runs can be triggered directly with Run or on a cron schedule with
// StartSchedule. StopSchedule prevents further triggers and lets an
// in-flight run finish.
package pipeline
