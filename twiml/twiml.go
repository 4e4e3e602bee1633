// Package twiml builds the call instructions handed to the telephony provider
// when it fetches the spoken verification announcement.
package twiml

import (
	"encoding/xml"
	"fmt"
	"io"
)

// ContentType is the media type of a rendered Response.
const ContentType = "application/xml"

// Verb is one instruction inside a Response.
type Verb interface {
	verb()
}

// Response is the root of a TwiML document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []Verb
}

// Play instructs the provider to fetch and play an audio file.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Say instructs the provider to read text with its own speech engine.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Language string   `xml:"language,attr,omitempty"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Pause holds the line silent for Length seconds.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

func (Play) verb()  {}
func (Say) verb()   {}
func (Pause) verb() {}

// Append adds verbs to the end of the response.
func (r *Response) Append(verbs ...Verb) *Response {
	r.Verbs = append(r.Verbs, verbs...)
	return r
}

// Marshal renders the response as an indented XML document with its declaration.
func (r *Response) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("could not marshal twiml response: %w", err)
	}

	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

// WriteTo writes the rendered document to w.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	data, err := r.Marshal()
	if err != nil {
		return 0, err
	}

	n, err := w.Write(data)
	return int64(n), err
}
