package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dokzlo13/loxd/internal/actuator"
	"github.com/dokzlo13/loxd/internal/catalog"
	"github.com/dokzlo13/loxd/internal/loxone"
)

const testStructure = `{
	"msInfo": {"languageCode": "DE", "location": "Testhaus", "roomTitle": "Raum"},
	"rooms": {
		"0ceefd17": {"name": "Küche", "uuid": "uuid-kueche"},
		"0ceefd1d": {"name": "Wohnzimmer", "uuid": "uuid-wohnzimmer"}
	},
	"cats": {"0c10052e": {"name": "Light", "uuid": "uuid-light", "type": "lights"}},
	"controls": {
		"0c119829": {"name": "Küche Arbeitsfläche", "type": "Switch", "cat": "0c10052e", "room": "0ceefd17", "uuidAction": "0c119829"}
	}
}`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	var structure loxone.StructureFile
	if err := json.Unmarshal([]byte(testStructure), &structure); err != nil {
		t.Fatalf("unmarshalling fixture: %v", err)
	}
	c, err := catalog.New(&structure, zerolog.Nop())
	if err != nil {
		t.Fatalf("building catalog: %v", err)
	}
	return c
}

type fakeSetter struct {
	calls []string // "actionID/state" per call
}

func (f *fakeSetter) SetState(ctx context.Context, actionID, newState string) error {
	f.calls = append(f.calls, actionID+"/"+newState)
	return nil
}

type fakeReporter struct {
	results []Result
}

func (f *fakeReporter) Report(result Result) {
	f.results = append(f.results, result)
}

type fixture struct {
	adapter  *Adapter
	setter   *fakeSetter
	reporter *fakeReporter
	loads    int
	loadErr  error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		setter:   &fakeSetter{},
		reporter: &fakeReporter{},
	}
	loader := func(ctx context.Context) (*catalog.Catalog, error) {
		f.loads++
		if f.loadErr != nil {
			return nil, f.loadErr
		}
		return testCatalog(t), nil
	}
	f.adapter = New(loader, actuator.New(f.setter, zerolog.Nop()), f.reporter, zerolog.Nop())
	return f
}

func (f *fixture) reported(t *testing.T) Result {
	t.Helper()
	if len(f.reporter.results) != 1 {
		t.Fatalf("reported %d results, want exactly one", len(f.reporter.results))
	}
	return f.reporter.results[0]
}

func validParams() Params {
	return Params{
		Host:     "127.0.0.1",
		User:     "loxoneuser",
		Password: "loxonepassword",
	}
}

func TestRun_MissingParameters(t *testing.T) {
	cases := map[string]Params{
		"empty":            {},
		"missing host":     {User: "u", Password: "p", Action: ActionChange, ControlName: "x"},
		"missing user":     {Host: "h", Password: "p", Action: ActionChange, ControlName: "x"},
		"missing password": {Host: "h", User: "u", Action: ActionChange, ControlName: "x"},
		"missing action":   {Host: "h", User: "u", Password: "p", ControlName: "x"},
	}

	for name, params := range cases {
		f := newFixture(t)
		err := f.adapter.Run(context.Background(), params)
		if !errors.Is(err, ErrMissingParameter) {
			t.Errorf("%s: got %v, want ErrMissingParameter", name, err)
		}
		if len(f.reporter.results) != 0 {
			t.Errorf("%s: validation failures must not report a result", name)
		}
	}
}

func TestRun_NothingToDo(t *testing.T) {
	f := newFixture(t)
	params := validParams()
	params.Action = ActionChange
	params.Catalog = testCatalog(t)

	if err := f.adapter.Run(context.Background(), params); !errors.Is(err, ErrMissingParameter) {
		t.Errorf("got %v, want ErrMissingParameter when no target is given", err)
	}
}

func TestRun_LoadFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.loadErr = errors.New("connection refused")

	params := validParams()
	params.Action = ActionChange
	params.ControlName = "Küche Arbeitsfläche"

	err := f.adapter.Run(context.Background(), params)
	if !errors.Is(err, f.loadErr) {
		t.Errorf("got %v, want the load error surfaced", err)
	}
	if len(f.reporter.results) != 0 {
		t.Error("a failed catalog load must not report a result")
	}
}

func TestRun_SuppliedCatalogSkipsLoad(t *testing.T) {
	f := newFixture(t)
	f.loadErr = errors.New("must not be called")

	params := validParams()
	params.Action = ActionList
	params.ControlType = catalog.KindRoom
	params.Catalog = testCatalog(t)

	if err := f.adapter.Run(context.Background(), params); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if f.loads != 0 {
		t.Errorf("loader called %d times with a pre-built catalog supplied", f.loads)
	}
}

func TestRun_ChangeByName(t *testing.T) {
	f := newFixture(t)

	params := validParams()
	params.Action = ActionChange
	params.ControlName = "Küche Arbeitsfläche"
	params.NewState = "on"
	params.Catalog = testCatalog(t)

	if err := f.adapter.Run(context.Background(), params); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(f.setter.calls) != 1 || f.setter.calls[0] != "0c119829/on" {
		t.Errorf("calls = %v, want exactly one state change for the resolved id", f.setter.calls)
	}

	result := f.reported(t)
	if result.StatusCode != StatusComplete {
		t.Errorf("StatusCode = %q, want %q", result.StatusCode, StatusComplete)
	}
	if result.ControlName != params.ControlName || result.ControlNewState != "on" {
		t.Errorf("result should echo the request, got %+v", result)
	}
	if result.InvocationID == "" {
		t.Error("result should carry an invocation id")
	}
}

func TestRun_ChangeByName_MissingState(t *testing.T) {
	f := newFixture(t)

	params := validParams()
	params.Action = ActionChange
	params.ControlName = "Küche Arbeitsfläche"
	params.Catalog = testCatalog(t)

	if err := f.adapter.Run(context.Background(), params); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(f.setter.calls) != 0 {
		t.Errorf("no request must be issued without a target state, got %v", f.setter.calls)
	}
	if result := f.reported(t); result.StatusCode != StatusIncomplete {
		t.Errorf("StatusCode = %q, want %q", result.StatusCode, StatusIncomplete)
	}
}

func TestRun_ChangeByName_Unresolved(t *testing.T) {
	f := newFixture(t)

	params := validParams()
	params.Action = ActionChange
	params.ControlName = "missing in definition"
	params.NewState = "on"
	params.Catalog = testCatalog(t)

	if err := f.adapter.Run(context.Background(), params); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(f.setter.calls) != 0 {
		t.Errorf("no request must be issued for an unresolved name, got %v", f.setter.calls)
	}
	if result := f.reported(t); result.StatusCode != StatusStateChangeError {
		t.Errorf("StatusCode = %q, want %q", result.StatusCode, StatusStateChangeError)
	}
}

func TestRun_ChangeByRoom_Unimplemented(t *testing.T) {
	f := newFixture(t)

	params := validParams()
	params.Action = ActionChange
	params.ControlType = catalog.KindLights
	params.ControlRoom = "Küche"
	params.NewState = "on"
	params.Catalog = testCatalog(t)

	if err := f.adapter.Run(context.Background(), params); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(f.setter.calls) != 0 {
		t.Errorf("the room-scoped branch must not issue requests, got %v", f.setter.calls)
	}
	if result := f.reported(t); result.StatusCode != StatusStateChangeError {
		t.Errorf("StatusCode = %q, want %q", result.StatusCode, StatusStateChangeError)
	}
}

func TestRun_ListRooms(t *testing.T) {
	f := newFixture(t)

	params := validParams()
	params.Action = ActionList
	params.ControlType = catalog.KindRoom
	params.Catalog = testCatalog(t)

	if err := f.adapter.Run(context.Background(), params); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	result := f.reported(t)
	if result.StatusCode != StatusList {
		t.Errorf("StatusCode = %q, want %q", result.StatusCode, StatusList)
	}
	if result.Summary != "Küche, Wohnzimmer" {
		t.Errorf("Summary = %q, want the joined room names", result.Summary)
	}
}

func TestRun_ListRooms_NoRooms(t *testing.T) {
	emptyDoc := `{
		"msInfo": {"languageCode": "DE", "location": "x", "roomTitle": "x"},
		"rooms": {},
		"cats": {},
		"controls": {}
	}`
	var structure loxone.StructureFile
	if err := json.Unmarshal([]byte(emptyDoc), &structure); err != nil {
		t.Fatalf("unmarshalling fixture: %v", err)
	}
	empty, err := catalog.New(&structure, zerolog.Nop())
	if err != nil {
		t.Fatalf("building catalog: %v", err)
	}

	f := newFixture(t)
	params := validParams()
	params.Action = ActionList
	params.ControlType = catalog.KindRoom
	params.Catalog = empty

	if err := f.adapter.Run(context.Background(), params); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result := f.reported(t); result.StatusCode != StatusError {
		t.Errorf("StatusCode = %q, want %q", result.StatusCode, StatusError)
	}
}

func TestRun_ListOtherKinds_Unimplemented(t *testing.T) {
	f := newFixture(t)

	params := validParams()
	params.Action = ActionList
	params.ControlType = catalog.KindLights
	params.Catalog = testCatalog(t)

	if err := f.adapter.Run(context.Background(), params); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result := f.reported(t); result.StatusCode != StatusIncomplete {
		t.Errorf("StatusCode = %q, want %q", result.StatusCode, StatusIncomplete)
	}
}
