package config

import (
	"reflect"
	"testing"

	"github.com/tabwire/tabwire/pkg/sorting"
)

func TestParseSortList(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []sorting.Spec
		wantErr bool
	}{
		{
			name: "single field defaults to asc",
			in:   "dept",
			want: []sorting.Spec{{Field: "dept", Direction: sorting.Asc}},
		},
		{
			name: "explicit directions",
			in:   "dept:asc,salary:desc",
			want: []sorting.Spec{
				{Field: "dept", Direction: sorting.Asc},
				{Field: "salary", Direction: sorting.Desc},
			},
		},
		{
			name: "mixed with whitespace",
			in:   " dept , salary:desc ",
			want: []sorting.Spec{
				{Field: "dept", Direction: sorting.Asc},
				{Field: "salary", Direction: sorting.Desc},
			},
		},
		{
			name: "trailing colon means default direction",
			in:   "dept:",
			want: []sorting.Spec{{Field: "dept", Direction: sorting.Asc}},
		},
		{
			name: "empty string means no keys",
			in:   "",
			want: nil,
		},
		{
			name:    "empty entry",
			in:      "dept,,salary",
			wantErr: true,
		},
		{
			name:    "missing field name",
			in:      ":desc",
			wantErr: true,
		},
		{
			name:    "unknown direction",
			in:      "dept:upward",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSortList(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSortList(%q) should error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSortList(%q) error = %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSortList(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
