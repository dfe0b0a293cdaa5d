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


// Package api exposes a lorekeep Engine over HTTP.
//
// Every route is scoped to a tenant:
//
//	GET    /healthz
//	GET    /v1/tenants/:tenant/sources
//	POST   /v1/tenants/:tenant/sources/text
//	POST   /v1/tenants/:tenant/sources/pages
//	DELETE /v1/tenants/:tenant/sources/:id
//	POST   /v1/tenants/:tenant/retrieve
//	POST   /v1/tenants/:tenant/search
//	DELETE /v1/tenants/:tenant
//
// Request and response bodies are JSON. Errors are reported as
// {"error": "..."}.
package api
