// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package markdown

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.astrophena.name/base/testutil"
)

func TestSplitFrontMatter(t *testing.T) {
	cases := map[string]struct {
		in       string
		want     *FrontMatter
		wantBody string
		wantErr  error
	}{
		"no front matter": {
			in:       "# Hello\n\n---\n",
			wantBody: "# Hello\n\n---\n",
		},
		"valid": {
			in: "---\ntitle: Hello, world!\ndate: 2026-03-01\ntags: [go, web]\n---\n# Hello\n",
			want: &FrontMatter{
				Title: "Hello, world!",
				Date:  "2026-03-01",
				Tags:  []string{"go", "web"},
			},
			wantBody: "# Hello\n",
		},
		"crlf": {
			in:       "---\r\ntitle: Hi\r\ndate: 2026-03-01T12:00:00Z\r\n---\r\nText.\r\n",
			want:     &FrontMatter{Title: "Hi", Date: "2026-03-01T12:00:00Z"},
			wantBody: "Text.\r\n",
		},
		"unclosed": {
			in:      "---\ntitle: Hi\ndate: 2026-03-01\n",
			wantErr: errFrontMatterUnclosed,
		},
		"missing title": {
			in:      "---\ndate: 2026-03-01\n---\n",
			wantErr: errFrontMatterMissing,
		},
		"missing date": {
			in:      "---\ntitle: Hi\n---\n",
			wantErr: errFrontMatterMissing,
		},
		"bad date": {
			in:      "---\ntitle: Hi\ndate: March 1\n---\n",
			wantErr: errFrontMatterDate,
		},
		"bad yaml": {
			in:      "---\ntitle: [Hi\n---\n",
			wantErr: errFrontMatterParse,
		},
		"bad structured data": {
			in:      "---\ntitle: Hi\ndate: 2026-03-01\nstructured_data: '{'\n---\n",
			wantErr: errFrontMatterParse,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			fm, body, err := SplitFrontMatter([]byte(tc.in))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, fm, tc.want)
			testutil.AssertEqual(t, string(body), tc.wantBody)
		})
	}
}

func TestFrontMatterPage(t *testing.T) {
	fm := &FrontMatter{
		Title:          "Hello",
		Author:         "Jane",
		Date:           "2026-03-01T12:00:00Z",
		Tags:           []string{"go", "web"},
		Description:    "A post.",
		StructuredData: `{"@type":"Article"}`,
	}
	p := fm.Page()
	testutil.AssertEqual(t, p.Title, "Hello")
	testutil.AssertEqual(t, p.Author, "Jane")
	testutil.AssertEqual(t, p.Description, "A post.")
	testutil.AssertEqual(t, p.Keywords, []string{"go", "web"})
	testutil.AssertEqual(t, p.StructuredData, json.RawMessage(`{"@type":"Article"}`))
	if p.Published == nil || !p.Published.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("Published = %v, want 2026-03-01T12:00:00Z", p.Published)
	}

	fm.Keywords = []string{"explicit"}
	testutil.AssertEqual(t, fm.Page().Keywords, []string{"explicit"})
}
