package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestParseOperation(t *testing.T) {
	cases := map[string]Operation{
		"":       OpRead,
		"read":   OpRead,
		"create": OpCreate,
		"update": OpUpdate,
		"delete": OpDelete,
		"invoke": OpInvoke,
	}
	for input, want := range cases {
		got, err := ParseOperation(input)
		if err != nil || got != want {
			t.Errorf("ParseOperation(%q) = %v, %v; want %v", input, got, err, want)
		}
	}

	if _, err := ParseOperation("upsert"); err == nil {
		t.Error("ParseOperation(upsert) did not fail")
	}
}

func TestBuildSentence(t *testing.T) {
	tests := []struct {
		name    string
		command string
		op      Operation
		method  string
		args    map[string]string
		want    []string
		wantErr bool
	}{
		{
			name:    "read with query",
			command: "/ip/address",
			op:      OpRead,
			args:    map[string]string{"interface": "ether1"},
			want:    []string{"/ip/address/print", "?interface=ether1"},
		},
		{
			name:    "create with attributes",
			command: "/ip/firewall/filter/",
			op:      OpCreate,
			args:    map[string]string{"chain": "input", "action": "accept"},
			want:    []string{"/ip/firewall/filter/add", "=action=accept", "=chain=input"},
		},
		{
			name:    "update",
			command: "/system/identity",
			op:      OpUpdate,
			args:    map[string]string{"name": "gw-1"},
			want:    []string{"/system/identity/set", "=name=gw-1"},
		},
		{
			name:    "delete by id",
			command: "/ip/hotspot/user",
			op:      OpDelete,
			args:    map[string]string{".id": "*3"},
			want:    []string{"/ip/hotspot/user/remove", "=.id=*3"},
		},
		{
			name:    "invoke method",
			command: "/system",
			op:      OpInvoke,
			method:  "reboot",
			want:    []string{"/system/reboot"},
		},
		{
			name:    "invoke without method",
			command: "/system",
			op:      OpInvoke,
			wantErr: true,
		},
		{
			name:    "empty command",
			command: "",
			op:      OpRead,
			wantErr: true,
		},
		{
			name:    "relative command",
			command: "ip/address",
			op:      OpRead,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildSentence(tt.command, tt.op, tt.method, tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("buildSentence() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildSentence() failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildSentence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatcher_ExecuteSuccess(t *testing.T) {
	repo := newTestRepo(t)
	fleet := newFakeFleet()
	fleet.devices["core1"] = &fakeDevice{rows: []map[string]string{{"name": "gw-1"}}}
	pool := NewConnectionPool(repo, fleet.dial)
	dispatcher := NewCommandDispatcher(pool, repo)
	addDevice(t, repo, "core1")

	result := dispatcher.Execute(context.Background(), "core1", "/system/identity", OpRead, "", nil)
	if !result.Success {
		t.Fatalf("Execute() failed: %s", result.Error)
	}
	if result.Device != "core1" || result.Command != "/system/identity" {
		t.Errorf("unexpected result envelope: %+v", result)
	}
	if len(result.Data) != 1 || result.Data[0]["name"] != "gw-1" {
		t.Errorf("unexpected data: %v", result.Data)
	}
	if result.ElapsedMs < 0 {
		t.Errorf("elapsed = %v", result.ElapsedMs)
	}
}

func TestDispatcher_FailureIsAValueNotAPanic(t *testing.T) {
	repo := newTestRepo(t)
	fleet := newFakeFleet()
	fleet.devices["core1"] = &fakeDevice{dialErr: errors.New("connection refused")}
	pool := NewConnectionPool(repo, fleet.dial)
	dispatcher := NewCommandDispatcher(pool, repo)
	addDevice(t, repo, "core1")

	result := dispatcher.Execute(context.Background(), "core1", "/system/identity", OpRead, "", nil)
	if result.Success {
		t.Fatal("Execute() against dead device reported success")
	}
	if result.Error == "" {
		t.Error("failed result carries no error")
	}
}

func TestDispatcher_ExecuteOnAllCardinality(t *testing.T) {
	repo := newTestRepo(t)
	fleet := newFakeFleet()
	fleet.devices["core1"] = &fakeDevice{}
	fleet.devices["core2"] = &fakeDevice{dialErr: errors.New("connection refused")}
	fleet.devices["core3"] = &fakeDevice{}
	pool := NewConnectionPool(repo, fleet.dial)
	dispatcher := NewCommandDispatcher(pool, repo)
	for _, name := range []string{"core1", "core2", "core3"} {
		addDevice(t, repo, name)
	}

	results := dispatcher.ExecuteOnAll(context.Background(), "/system/identity", OpRead, "", nil)
	if len(results) != 3 {
		t.Fatalf("ExecuteOnAll() returned %d results, want 3", len(results))
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
			if r.Device != "core2" {
				t.Errorf("unexpected failing device %s", r.Device)
			}
		}
	}
	if failed != 1 {
		t.Errorf("failed count = %d, want 1", failed)
	}
}

func TestDispatcher_ExecuteOnAllEmptyRegistry(t *testing.T) {
	repo := newTestRepo(t)
	pool := NewConnectionPool(repo, newFakeFleet().dial)
	dispatcher := NewCommandDispatcher(pool, repo)

	results := dispatcher.ExecuteOnAll(context.Background(), "/system/identity", OpRead, "", nil)
	if len(results) != 0 {
		t.Errorf("ExecuteOnAll() on empty registry returned %d results", len(results))
	}
}
