package model

import (
	"encoding/json"
	"testing"
)

func TestAnswerUnmarshal(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    Answer
		wantErr bool
	}{
		{"tagged mcq", `{"kind":"mcq","option":2}`, MCQAnswer(2), false},
		{"tagged mcq zero option", `{"kind":"mcq","option":0}`, MCQAnswer(0), false},
		{"tagged theory", `{"kind":"theory","text":"because of osmosis"}`, TheoryAnswer("because of osmosis"), false},
		{"tagged theory empty text", `{"kind":"theory","text":""}`, TheoryAnswer(""), false},
		{"bare number", `3`, MCQAnswer(3), false},
		{"bare string", `"free text"`, TheoryAnswer("free text"), false},
		{"mcq missing option", `{"kind":"mcq"}`, Answer{}, true},
		{"theory missing text", `{"kind":"theory"}`, Answer{}, true},
		{"unknown kind", `{"kind":"essay","text":"x"}`, Answer{}, true},
		{"null", `null`, Answer{}, true},
		{"float", `1.5`, Answer{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got Answer
			err := json.Unmarshal([]byte(tc.in), &got)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestAnswerMarshalRoundTrip(t *testing.T) {
	for _, a := range []Answer{MCQAnswer(0), MCQAnswer(3), TheoryAnswer("osmosis"), TheoryAnswer("")} {
		data, err := json.Marshal(a)
		if err != nil {
			t.Fatal(err)
		}
		var back Answer
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != a {
			t.Errorf("round trip %s: got %+v, want %+v", data, back, a)
		}
	}
}

func TestOptionIndexCoercion(t *testing.T) {
	cases := []struct {
		a    Answer
		want int
		ok   bool
	}{
		{MCQAnswer(2), 2, true},
		{MCQAnswer(0), 0, true},
		{TheoryAnswer("1"), 1, true},
		{TheoryAnswer(" 3 "), 3, true},
		{TheoryAnswer("not a number"), 0, false},
		{TheoryAnswer(""), 0, false},
	}
	for _, tc := range cases {
		got, ok := tc.a.OptionIndex()
		if got != tc.want || ok != tc.ok {
			t.Errorf("OptionIndex(%+v) = (%d, %v), want (%d, %v)", tc.a, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAnswerMapDecode(t *testing.T) {
	// Mixed payload as an unload flush would send it.
	payload := `{"0":1,"2":"photosynthesis","5":{"kind":"mcq","option":3}}`

	var answers map[int]Answer
	if err := json.Unmarshal([]byte(payload), &answers); err != nil {
		t.Fatal(err)
	}
	if len(answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(answers))
	}
	if answers[0] != MCQAnswer(1) {
		t.Errorf("answers[0] = %+v", answers[0])
	}
	if answers[2] != TheoryAnswer("photosynthesis") {
		t.Errorf("answers[2] = %+v", answers[2])
	}
	if answers[5] != MCQAnswer(3) {
		t.Errorf("answers[5] = %+v", answers[5])
	}
}
