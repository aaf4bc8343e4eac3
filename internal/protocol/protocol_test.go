package protocol

import "testing"

func TestParsePushRequest(t *testing.T) {
	raw := "PUT /data HTTP/1.1\n" +
		"User-Agent: ATOMClient IDS60901 1\n" +
		"Content-Type: application/json\n" +
		"Content-Length: 33\n\n" +
		`{"id":"IDS60901","air_temp":13.3}`

	got := Parse([]byte(raw))
	if got.Malformed {
		t.Fatalf("unexpected malformed: %s", got.MalformedWhy)
	}
	if got.Verb != VerbPut {
		t.Fatalf("Verb = %v, want VerbPut", got.Verb)
	}
	if got.AgentId != "IDS60901" || got.Lamport != 1 {
		t.Fatalf("AgentId/Lamport = %q/%d, want IDS60901/1", got.AgentId, got.Lamport)
	}
	if string(got.Body) != `{"id":"IDS60901","air_temp":13.3}` {
		t.Fatalf("Body = %s", got.Body)
	}
}

func TestParseFetchRequest(t *testing.T) {
	raw := "GET HTTP/1.1\nUser-Agent: ATOMClient ZZZ99999 7\n"
	got := Parse([]byte(raw))
	if got.Malformed {
		t.Fatalf("unexpected malformed: %s", got.MalformedWhy)
	}
	if got.Verb != VerbGet || got.AgentId != "ZZZ99999" || got.Lamport != 7 {
		t.Fatalf("got %+v", got)
	}
}

func TestParseUnknownVerbIsMalformed(t *testing.T) {
	got := Parse([]byte("FOO demo HTTP/1.1\n"))
	if !got.Malformed {
		t.Fatal("expected malformed for unknown verb")
	}
}

func TestParseShortUserAgentIsMalformed(t *testing.T) {
	got := Parse([]byte("GET HTTP/1.1\nUser-Agent: OnlyTwoFields\n"))
	if !got.Malformed {
		t.Fatal("expected malformed for short User-Agent")
	}
}

func TestParsePutWithoutBody(t *testing.T) {
	raw := "PUT /data HTTP/1.1\nUser-Agent: ATOMClient IDS60901 1\n\n"
	got := Parse([]byte(raw))
	if got.Malformed {
		t.Fatalf("unexpected malformed: %s", got.MalformedWhy)
	}
	if got.Body != nil {
		t.Fatalf("Body = %s, want nil", got.Body)
	}
}

func TestEncodeOmitsWeatherDataWhenAbsent(t *testing.T) {
	data, err := Encode(Response{StatusCode: 404, Msg: "not found", LamportClock: 3})
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if contains := (func() bool {
		for i := 0; i+len("weatherData") <= len(got); i++ {
			if got[i:i+len("weatherData")] == "weatherData" {
				return true
			}
		}
		return false
	})(); contains {
		t.Fatalf("response should omit weatherData: %s", got)
	}
}
