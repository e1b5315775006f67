package core

import "testing"

func TestPage_Normalize(t *testing.T) {
	p := Page{}.Normalize()
	if p.Page != 1 || p.PageSize != 20 {
		t.Fatalf("defaults = %+v", p)
	}
	p = Page{Page: -3, PageSize: 0}.Normalize()
	if p.Page != 1 || p.PageSize != 20 {
		t.Fatalf("negative page should normalize, got %+v", p)
	}
	p = Page{Page: 4, PageSize: 50}.Normalize()
	if p.Page != 4 || p.PageSize != 50 {
		t.Fatalf("explicit values should pass through, got %+v", p)
	}
}

func TestPage_Offset(t *testing.T) {
	if off := (Page{Page: 1, PageSize: 20}).Offset(); off != 0 {
		t.Errorf("first page offset = %d", off)
	}
	if off := (Page{Page: 3, PageSize: 10}).Offset(); off != 20 {
		t.Errorf("third page offset = %d", off)
	}
	if off := (Page{}).Offset(); off != 0 {
		t.Errorf("zero page offset = %d", off)
	}
}
