package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"aimint/internal/chain"
	"aimint/internal/domain"
	"aimint/internal/providers/inference"
	"aimint/internal/storage"
)

type stubGenerator struct {
	image   *inference.Image
	err     error
	calls   int
	prompts []string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (*inference.Image, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	return s.image, s.err
}

type stubUploader struct {
	cid     string
	err     error
	calls   int
	uploads []storage.Upload
}

func (s *stubUploader) Store(ctx context.Context, up storage.Upload) (*storage.Stored, error) {
	s.calls++
	s.uploads = append(s.uploads, up)
	if s.err != nil {
		return nil, s.err
	}
	return &storage.Stored{CID: s.cid, MetadataURL: storage.MetadataURL("ipfs.io", s.cid)}, nil
}

type stubMinter struct {
	err   error
	calls int
	uris  []string
}

func (s *stubMinter) Mint(ctx context.Context, tokenURI string) (*chain.MintResult, error) {
	s.calls++
	s.uris = append(s.uris, tokenURI)
	if s.err != nil {
		return nil, s.err
	}
	return &chain.MintResult{
		TxHash:      common.HexToHash("0xfeed"),
		BlockNumber: 9,
		TokenID:     big.NewInt(1),
	}, nil
}

type fixture struct {
	gen    *stubGenerator
	up     *stubUploader
	minter *stubMinter
	states []State
}

func newFixture() *fixture {
	return &fixture{
		gen:    &stubGenerator{image: &inference.Image{Data: []byte{0xff, 0xd8, 0x01}, ContentType: "image/jpeg"}},
		up:     &stubUploader{cid: "abc123"},
		minter: &stubMinter{},
	}
}

func (f *fixture) run(form Form) (State, error) {
	p := New(f.gen, f.up, f.minter, nil)
	return p.Run(context.Background(), form, func(s State) { f.states = append(f.states, s) })
}

func (f *fixture) statuses() []string {
	var out []string
	for _, s := range f.states {
		if s.Busy && (len(out) == 0 || out[len(out)-1] != s.Status) {
			out = append(out, s.Status)
		}
	}
	return out
}

func TestRunRejectsEmptyFieldsWithoutNetworkCalls(t *testing.T) {
	tests := []struct {
		name string
		form Form
	}{
		{name: "empty name", form: Form{Description: "a red fox"}},
		{name: "empty description", form: Form{Name: "Fox"}},
		{name: "whitespace only", form: Form{Name: "  ", Description: "\t"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			st, err := f.run(tc.form)
			if !errors.Is(err, domain.ErrInvalidPrompt) {
				t.Fatalf("err = %v, want ErrInvalidPrompt", err)
			}
			if f.gen.calls+f.up.calls+f.minter.calls != 0 {
				t.Fatalf("no stage should run: gen=%d up=%d mint=%d", f.gen.calls, f.up.calls, f.minter.calls)
			}
			if st.Busy || st.Stage != StageIdle || st.Err == nil || st.Err.Stage != StageValidating {
				t.Fatalf("final state = %+v", st)
			}
			for _, s := range f.states {
				if s.Busy {
					t.Fatalf("busy must never be set for an invalid form")
				}
			}
		})
	}
}

func TestRunSuccessfulCycle(t *testing.T) {
	f := newFixture()
	st, err := f.run(Form{Name: "Fox", Description: "a red fox in snow"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.gen.prompts) != 1 || f.gen.prompts[0] != "a red fox in snow" {
		t.Fatalf("generator prompts = %#v", f.gen.prompts)
	}
	want := []string{StatusCreatingImage, StatusUploadingImage, StatusWaitingForMint}
	got := f.statuses()
	if len(got) != len(want) {
		t.Fatalf("statuses = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statuses[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if len(f.up.uploads) != 1 {
		t.Fatalf("uploads = %d, want 1", len(f.up.uploads))
	}
	up := f.up.uploads[0]
	if up.Name != "Fox" || up.Description != "a red fox in snow" || !bytes.Equal(up.Image, f.gen.image.Data) {
		t.Fatalf("upload = %+v", up)
	}

	wantURL := "https://ipfs.io/ipfs/abc123/metadata.json"
	if len(f.minter.uris) != 1 || f.minter.uris[0] != wantURL {
		t.Fatalf("mint uris = %#v, want [%q]", f.minter.uris, wantURL)
	}

	if st.Busy || st.Stage != StageIdle || st.Status != "" || st.Err != nil {
		t.Fatalf("final state = %+v", st)
	}
	if !st.Succeeded() {
		t.Fatalf("expected success state")
	}
	if st.MetadataURL != wantURL {
		t.Fatalf("metadata url = %q", st.MetadataURL)
	}
	if st.Image == nil || !bytes.Equal(st.Image.Data, f.gen.image.Data) {
		t.Fatalf("displayed image does not match generated bytes")
	}
	if st.TokenID != "1" || st.TxHash != common.HexToHash("0xfeed").Hex() {
		t.Fatalf("mint result = %q / %q", st.TokenID, st.TxHash)
	}
	last := f.states[len(f.states)-1]
	if last.Busy || last.Stage != StageIdle {
		t.Fatalf("last observed state = %+v", last)
	}
}

func TestRunStopsAtFailingStage(t *testing.T) {
	boom := errors.New("network unreachable")
	tests := []struct {
		name        string
		setup       func(*fixture)
		stage       Stage
		wantUp      int
		wantMint    int
		wantImage   bool
		wantMetaURL bool
	}{
		{
			name:  "generator",
			setup: func(f *fixture) { f.gen.err = boom },
			stage: StageGeneratingImage,
		},
		{
			name:  "generator returns nothing",
			setup: func(f *fixture) { f.gen.image = nil },
			stage: StageGeneratingImage,
		},
		{
			name:      "uploader",
			setup:     func(f *fixture) { f.up.err = boom },
			stage:     StageUploading,
			wantUp:    1,
			wantImage: true,
		},
		{
			name:        "minter",
			setup:       func(f *fixture) { f.minter.err = boom },
			stage:       StageMinting,
			wantUp:      1,
			wantMint:    1,
			wantImage:   true,
			wantMetaURL: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			tc.setup(f)
			st, err := f.run(Form{Name: "Fox", Description: "a red fox"})
			if err == nil {
				t.Fatalf("expected error")
			}
			var stageErr *StageError
			if !errors.As(err, &stageErr) || stageErr.Stage != tc.stage {
				t.Fatalf("err = %v, want StageError at %s", err, tc.stage)
			}
			if f.up.calls != tc.wantUp || f.minter.calls != tc.wantMint {
				t.Fatalf("calls up=%d mint=%d, want up=%d mint=%d", f.up.calls, f.minter.calls, tc.wantUp, tc.wantMint)
			}
			if !st.Failed() || st.Busy {
				t.Fatalf("final state = %+v", st)
			}
			if st.Status == "" || st.Status != st.Err.Message {
				t.Fatalf("status should surface the error, got %q", st.Status)
			}
			if (st.Image != nil) != tc.wantImage {
				t.Fatalf("image kept = %v, want %v", st.Image != nil, tc.wantImage)
			}
			if (st.MetadataURL != "") != tc.wantMetaURL {
				t.Fatalf("metadata url kept = %q", st.MetadataURL)
			}
		})
	}
}

func TestRunHonorsCancelledContext(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(f.gen, f.up, f.minter, nil)
	_, err := p.Run(ctx, Form{Name: "Fox", Description: "a red fox"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if f.gen.calls != 0 {
		t.Fatalf("generator should not run after cancellation")
	}
}

func TestFormNormalize(t *testing.T) {
	// "e" + combining acute accent composes to a single rune.
	f := Form{Name: "  Cafe\u0301 ", Description: " latte art "}.Normalize()
	if f.Name != "Caf\u00e9" {
		t.Fatalf("name = %q, want NFC form", f.Name)
	}
	if f.Description != "latte art" {
		t.Fatalf("description = %q", f.Description)
	}
}
