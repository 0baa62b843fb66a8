package result

import "testing"

func TestFoldCollectsAllErrors(t *testing.T) {
	items := []int{1, -1, 2, -2, 3}
	r := Fold(items, func(i int) Result[int] {
		if i < 0 {
			return Err[int](NewError("negative", "value is negative").WithDetail("value", i))
		}
		return Ok(i * 10)
	})
	if r.IsOK() {
		t.Fatalf("expected failure, got ok")
	}
	errs := r.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if errs[0].Details["value"] != -1 || errs[1].Details["value"] != -2 {
		t.Fatalf("errors out of discovery order: %+v", errs)
	}
}

func TestFoldAllOK(t *testing.T) {
	r := Fold([]int{1, 2, 3}, func(i int) Result[int] { return Ok(i * 2) })
	vals, ok := r.Value()
	if !ok {
		t.Fatalf("expected ok")
	}
	want := []int{2, 4, 6}
	for i, v := range want {
		if vals[i] != v {
			t.Fatalf("index %d: got %d want %d", i, vals[i], v)
		}
	}
}

func TestMapPassesErrorsThrough(t *testing.T) {
	r := Err[int](NewError("x", "boom"))
	mapped := Map(r, func(i int) string { return "unreachable" })
	if mapped.IsOK() {
		t.Fatalf("expected error to pass through Map")
	}
	if mapped.Errors()[0].Code != "x" {
		t.Fatalf("error code not preserved: %+v", mapped.Errors())
	}
}

func TestBindChaining(t *testing.T) {
	r := Bind(Ok(2), func(i int) Result[int] {
		if i%2 != 0 {
			return Err[int](NewError("odd", "not even"))
		}
		return Ok(i * 100)
	})
	v, ok := r.Value()
	if !ok || v != 200 {
		t.Fatalf("unexpected bind result: %v ok=%v", v, ok)
	}
}

func TestCombineAggregatesAllErrors(t *testing.T) {
	r := Combine(
		Err[string](NewError("a", "first")),
		Ok("fine"),
		Err[string](NewError("b", "second"), NewError("c", "third")),
	)
	if r.IsOK() {
		t.Fatalf("expected failure")
	}
	if len(r.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %d", len(r.Errors()))
	}
}

func TestErrPanicsOnEmpty(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on empty Err")
		}
	}()
	_ = Err[int]()
}
