package authority

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Kind is the first line of a request frame.
type Kind string

const (
	KindAppStart         Kind = "AppStart"
	KindGameStateRequest Kind = "GameStateRequest"
	KindGameStart        Kind = "GameStart"
	KindChessMove        Kind = "ChessMove"
)

const (
	markerSuccess = "success"
	markerFailure = "failure"
)

var (
	ErrMalformed = errors.New("malformed authority frame")
	ErrRejected  = errors.New("authority rejected request")
)

// Request is one line-oriented authority call: the kind, then "Key: value" lines.
type Request struct {
	Kind Kind
	From string
	Name string
	To   string
	Move string
	Game string
}

// Response starts with success or failure, then Colour, FEN and optional fields.
type Response struct {
	OK     bool
	Colour string
	FEN    string
	Game   string
	Error  string
}

// fields lists the keys each kind carries, in wire order.
func (r Request) fields() ([][2]string, error) {
	switch r.Kind {
	case KindAppStart:
		return [][2]string{{"From", r.From}, {"Name", r.Name}}, nil
	case KindGameStateRequest:
		return [][2]string{{"From", r.From}, {"Game", r.Game}}, nil
	case KindGameStart:
		return [][2]string{{"From", r.From}, {"To", r.To}, {"Game", r.Game}}, nil
	case KindChessMove:
		return [][2]string{{"From", r.From}, {"To", r.To}, {"Move", r.Move}, {"Game", r.Game}}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, r.Kind)
	}
}

// Retryable reports whether the client may resend the request on a transient
// failure. AppStart is only ever retried by the session connector's budget.
func (r Request) Retryable() bool {
	return r.Kind == KindGameStateRequest
}

func (r Request) Validate() error {
	fields, err := r.fields()
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f[0] == "Name" {
			// display names may be blank
			continue
		}
		if strings.TrimSpace(f[1]) == "" {
			return fmt.Errorf("%w: %s requires %s", ErrMalformed, r.Kind, f[0])
		}
	}
	return nil
}

func EncodeRequest(r Request) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	fields, _ := r.fields()
	var b bytes.Buffer
	b.WriteString(string(r.Kind))
	b.WriteByte('\n')
	for _, f := range fields {
		if err := writeField(&b, f[0], f[1]); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

func DecodeRequest(raw []byte) (Request, error) {
	first, kv, err := split(raw)
	if err != nil {
		return Request{}, err
	}
	r := Request{
		Kind: Kind(first),
		From: kv["From"],
		Name: kv["Name"],
		To:   kv["To"],
		Move: kv["Move"],
		Game: kv["Game"],
	}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

func EncodeResponse(r Response) []byte {
	var b bytes.Buffer
	if r.OK {
		b.WriteString(markerSuccess)
	} else {
		b.WriteString(markerFailure)
	}
	b.WriteByte('\n')
	for _, f := range [][2]string{{"Colour", r.Colour}, {"FEN", r.FEN}, {"Game", r.Game}, {"Error", r.Error}} {
		if f[1] == "" {
			continue
		}
		// responses are built server-side; flatten rather than fail
		_ = writeField(&b, f[0], strings.ReplaceAll(f[1], "\n", " "))
	}
	return b.Bytes()
}

// DecodeResponse fails on anything other than a success or failure marker.
func DecodeResponse(raw []byte) (Response, error) {
	first, kv, err := split(raw)
	if err != nil {
		return Response{}, err
	}
	var r Response
	switch strings.ToLower(first) {
	case markerSuccess:
		r.OK = true
	case markerFailure:
	default:
		return Response{}, fmt.Errorf("%w: marker %q", ErrMalformed, first)
	}
	r.Colour = kv["Colour"]
	r.FEN = kv["FEN"]
	r.Game = kv["Game"]
	r.Error = kv["Error"]
	return r, nil
}

func writeField(b *bytes.Buffer, key, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%w: %s contains a line break", ErrMalformed, key)
	}
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
	return nil
}

func split(raw []byte) (string, map[string]string, error) {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	first := ""
	for sc.Scan() {
		if first = strings.TrimSpace(sc.Text()); first != "" {
			break
		}
	}
	if first == "" {
		return "", nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	kv := make(map[string]string)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return "", nil, fmt.Errorf("%w: line %q", ErrMalformed, line)
		}
		kv[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if err := sc.Err(); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return first, kv, nil
}
