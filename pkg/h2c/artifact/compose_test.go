/**
 * Copyright 2020 Appvia Ltd <info@appvia.io>
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package artifact

import "testing"

func TestOrderedEnv_PreservesInsertionOrder(t *testing.T) {
	var env OrderedEnv
	env.Set("B", "2")
	env.Set("A", "1")
	env.Set("B", "two")

	entries := env.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Key != "B" || entries[0].Value != "two" {
		t.Errorf("expected B updated in place, got %+v", entries[0])
	}
	if entries[1].Key != "A" || entries[1].Value != "1" {
		t.Errorf("expected A second, got %+v", entries[1])
	}
}

func TestOrderedEnv_Delete(t *testing.T) {
	var env OrderedEnv
	env.Set("A", "1")
	env.Set("B", "2")
	env.Set("C", "3")

	env.Delete("B")

	if _, ok := env.Get("B"); ok {
		t.Errorf("expected B removed")
	}
	entries := env.Entries()
	if len(entries) != 2 || entries[0].Key != "A" || entries[1].Key != "C" {
		t.Fatalf("unexpected entries after delete: %+v", entries)
	}
}

func TestProject_AddServiceTracksOrder(t *testing.T) {
	p := NewProject()
	p.AddService(&Service{Name: "web"})
	p.AddService(&Service{Name: "worker"})
	p.AddService(&Service{Name: "web"})

	order := p.ServiceOrder
	if len(order) != 2 || order[0] != "web" || order[1] != "worker" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestProject_RemoveService(t *testing.T) {
	p := NewProject()
	p.AddService(&Service{Name: "web"})
	p.AddService(&Service{Name: "worker"})

	p.RemoveService("web")

	if _, ok := p.Services["web"]; ok {
		t.Errorf("expected web removed")
	}
	if len(p.OrderedServices()) != 1 {
		t.Fatalf("expected 1 remaining service, got %d", len(p.OrderedServices()))
	}
}
