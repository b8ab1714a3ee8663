package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *TLDRegistry {
	t.Helper()
	reg, err := NewTLDRegistry([]string{"COM", "net", "org", "io", "XN--P1AI"})
	require.NoError(t, err)
	return reg
}

func TestClassify(t *testing.T) {
	reg := testRegistry(t)

	tests := []struct {
		token string
		want  Verdict
	}{
		{"", Unmatched},
		{"check", Unmatched},
		{"192.168.1.1", VerdictIP},
		{"0.0.0.0", VerdictIP},
		{"255.255.255.255", VerdictIP},
		{"00.010.1.199", VerdictIP},
		{"256.1.1.1", Unmatched},
		{"1.2.3", Unmatched},
		{"1.2.3.4.5", Unmatched},
		{"1.2.3.4:8080", Unmatched},
		{"example.com", VerdictDomain},
		{"Example.COM", VerdictDomain},
		{"sub-1.mail.example.org", VerdictDomain},
		{"example.xn--p1ai", Unmatched}, // final label must be alphabetic
		{"notareal.zzzzinvalid", Unmatched},
		{"example.com,", Unmatched},
		{"example.c", Unmatched},
		{"1.2.3.com", VerdictDomain},
		{"https://example.com/path", VerdictURL},
		{"http://1.2.3.4/x.sh", VerdictURL},
		{"httpd.conf", VerdictURL},
		{"http", VerdictURL},
		{"HTTP://example.com", Unmatched},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.token), func(t *testing.T) {
			got := Classify(tt.token, reg)
			assert.Equal(t, tt.want, got.Verdict)
			assert.Equal(t, tt.token, got.Token)
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	reg := testRegistry(t)
	for _, token := range []string{"10.0.0.1", "evil.net", "http://x", "junk", "bad.tldx"} {
		first := Classify(token, reg)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, Classify(token, reg))
		}
	}
}

func TestClassify_EveryDottedQuadIsIP(t *testing.T) {
	reg := testRegistry(t)
	for _, a := range []int{0, 1, 9, 10, 99, 100, 199, 200, 249, 250, 255} {
		for _, b := range []int{0, 127, 255} {
			token := fmt.Sprintf("%d.%d.%d.%d", a, b, b, a)
			assert.Equal(t, VerdictIP, Classify(token, reg).Verdict, token)
		}
	}
}

func TestClassify_NilRegistryDisablesDomains(t *testing.T) {
	var reg *TLDRegistry

	assert.Equal(t, Unmatched, Classify("example.com", reg).Verdict)
	assert.Equal(t, Unmatched, Classify("example.com", nil).Verdict)
	assert.Equal(t, VerdictIP, Classify("8.8.8.8", nil).Verdict)
	assert.Equal(t, VerdictURL, Classify("https://example.com", nil).Verdict)
}

func TestHasHostnameShape(t *testing.T) {
	assert.True(t, HasHostnameShape("notareal.zzzzinvalid"))
	assert.True(t, HasHostnameShape("a-b.c-d.ef"))
	assert.False(t, HasHostnameShape("10.0.0.1"))
	assert.False(t, HasHostnameShape("example.com,"))
	assert.False(t, HasHostnameShape("localhost"))
}

func TestClassification_IOCType(t *testing.T) {
	cases := map[Verdict]IOCType{
		VerdictIP:     IPAddress,
		VerdictDomain: Domain,
		VerdictURL:    URL,
	}
	for verdict, want := range cases {
		got, ok := Classification{Verdict: verdict}.IOCType()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := Classification{Verdict: Unmatched}.IOCType()
	assert.False(t, ok)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"check", "192.168.1.1", "now"}, Tokenize("check 192.168.1.1 now"))
	assert.Equal(t, []string{"a", "b,", "c"}, Tokenize("  a\t\tb,\n c  "))
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize(" \n\t "))
}

func TestExtractIOCs(t *testing.T) {
	reg := testRegistry(t)

	found := ExtractIOCs("visit https://example.com/path today or 10.0.0.1 and evil.net, evil.org", reg)
	require.Len(t, found, 3)
	assert.Equal(t, Classification{Verdict: VerdictURL, Token: "https://example.com/path"}, found[0])
	assert.Equal(t, Classification{Verdict: VerdictIP, Token: "10.0.0.1"}, found[1])
	assert.Equal(t, Classification{Verdict: VerdictDomain, Token: "evil.org"}, found[2])

	assert.Empty(t, ExtractIOCs("go to notareal.zzzzinvalid", reg))
}
