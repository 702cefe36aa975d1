package dns_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchtowerdns/watchtower/internal/dns"
	"github.com/watchtowerdns/watchtower/internal/randsrc"
)

func samplePacket() dns.Packet {
	var h dns.Header
	h.ID = 0x1234
	h.SetQR(true)
	h.SetRD(true)
	h.SetRA(true)

	return dns.Packet{
		Header:    h,
		Questions: []dns.Question{{Name: "example.com", Type: dns.TypeA}},
		Answers: []dns.ResourceRecord{
			dns.ARecord{H: dns.RRHeader{Domain: "example.com", TTL: 300}, Addr: net.ParseIP("93.184.216.34")},
		},
	}
}

func TestPacketWriteParseRoundTrip(t *testing.T) {
	p := samplePacket()

	buf := dns.NewFixedBuffer()
	require.NoError(t, p.Write(buf, dns.MaxUDPPayloadSize))

	require.NoError(t, buf.Seek(0))
	got, err := dns.ParsePacket(buf)
	require.NoError(t, err)

	require.Equal(t, p.Header.ID, got.Header.ID)
	require.Len(t, got.Questions, 1)
	require.Equal(t, "example.com", got.Questions[0].Name)
	require.Len(t, got.Answers, 1)

	a, ok := got.Answers[0].(dns.ARecord)
	require.True(t, ok)
	require.True(t, a.Addr.Equal(net.ParseIP("93.184.216.34")))
	require.False(t, got.Header.TC())
}

func TestPacketTruncatesWhenOverMaxSize(t *testing.T) {
	var h dns.Header
	h.SetQR(true)

	p := dns.Packet{
		Header:    h,
		Questions: []dns.Question{{Name: "example.com", Type: dns.TypeNS}},
	}
	for i := 0; i < 10; i++ {
		p.Answers = append(p.Answers, dns.NSRecord{
			H:    dns.RRHeader{Domain: "example.com", TTL: 3600},
			Host: "ns-with-a-longer-hostname-label.example.com",
		})
	}

	buf := dns.NewFixedBuffer()
	const maxSize = 80
	require.NoError(t, p.Write(buf, maxSize))

	require.NoError(t, buf.Seek(0))
	got, err := dns.ParsePacket(buf)
	require.NoError(t, err)

	require.True(t, got.Header.TC())
	require.Less(t, len(got.Answers), 10)
}

func TestRandomAPicksAmongAAnswersOnly(t *testing.T) {
	p := dns.Packet{
		Answers: []dns.ResourceRecord{
			dns.CNAMERecord{H: dns.RRHeader{Domain: "www.example.com"}, Target: "example.com"},
			dns.ARecord{H: dns.RRHeader{Domain: "example.com"}, Addr: net.ParseIP("93.184.216.34")},
		},
	}
	addr, ok := p.RandomA(randsrc.Fixed(0, 0))
	require.True(t, ok)
	require.Equal(t, "93.184.216.34", addr)
}

func TestRandomANoAnswersReturnsFalse(t *testing.T) {
	p := dns.Packet{}
	_, ok := p.RandomA(randsrc.Default)
	require.False(t, ok)
}

func TestUnresolvedCNAMEsExcludesChainedA(t *testing.T) {
	p := dns.Packet{
		Answers: []dns.ResourceRecord{
			dns.CNAMERecord{H: dns.RRHeader{Domain: "www.example.com"}, Target: "example.com"},
			dns.ARecord{H: dns.RRHeader{Domain: "example.com"}, Addr: net.ParseIP("93.184.216.34")},
			dns.CNAMERecord{H: dns.RRHeader{Domain: "blog.example.com"}, Target: "ghs.example.net"},
		},
	}
	unresolved := p.UnresolvedCNAMEs()
	require.Len(t, unresolved, 1)
	require.Equal(t, "ghs.example.net", unresolved[0].Target)
}

func TestResolvedNSRequiresGlue(t *testing.T) {
	p := dns.Packet{
		Authorities: []dns.ResourceRecord{
			dns.NSRecord{H: dns.RRHeader{Domain: "com"}, Host: "a.gtld-servers.net"},
		},
		Additionals: []dns.ResourceRecord{
			dns.ARecord{H: dns.RRHeader{Domain: "a.gtld-servers.net"}, Addr: net.ParseIP("192.5.6.30")},
		},
	}
	ip, ok := p.ResolvedNS("example.com", randsrc.Fixed(0, 0))
	require.True(t, ok)
	require.Equal(t, "192.5.6.30", ip)
}

func TestUnresolvedNSWhenNoGlue(t *testing.T) {
	p := dns.Packet{
		Authorities: []dns.ResourceRecord{
			dns.NSRecord{H: dns.RRHeader{Domain: "com"}, Host: "a.gtld-servers.net"},
		},
	}
	_, hasGlue := p.ResolvedNS("example.com", randsrc.Fixed(0, 0))
	require.False(t, hasGlue)

	host, ok := p.UnresolvedNS("example.com", randsrc.Fixed(0, 0))
	require.True(t, ok)
	require.Equal(t, "a.gtld-servers.net", host)
}

func TestNSSuffixMatchIsCaseInsensitiveAndProper(t *testing.T) {
	p := dns.Packet{
		Authorities: []dns.ResourceRecord{
			dns.NSRecord{H: dns.RRHeader{Domain: "COM"}, Host: "a.gtld-servers.net"},
			dns.NSRecord{H: dns.RRHeader{Domain: "notexample.com"}, Host: "evil.example"},
		},
	}
	host, ok := p.UnresolvedNS("www.example.com", randsrc.Fixed(0, 0))
	require.True(t, ok)
	require.Equal(t, "a.gtld-servers.net", host)
}
