package wgconf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nyiyui/wgconf/goal"
	"github.com/nyiyui/wgconf/keys"
	"gopkg.in/ini.v1"
)

const hostname = "testy.example.com"

func newTestConfig(t *testing.T, opts ...Option) *Config {
	t.Helper()
	opts = append([]Option{WithDir(t.TempDir()), WithKeys(keys.Native{})}, opts...)
	c, err := New(hostname, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func mustPubKey(t *testing.T, priv string) string {
	t.Helper()
	pub, err := keys.Native{}.PubKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	return pub
}

func TestCreateDefaults(t *testing.T) {
	server := newTestConfig(t)
	if _, err := server.CreateInterface(goal.InterfaceProps{}); err != nil {
		t.Fatal(err)
	}
	client, err := server.AddClient("urmom", goal.ClientProps{PrivateAddress: goal.Some("10.10.0.2")})
	if err != nil {
		t.Fatal(err)
	}
	if client == nil {
		t.Fatal("no client config")
	}

	serverPriv := server.Interface().PrivateKey()
	clientPriv := client.Interface().PrivateKey()
	psk := server.Peer("urmom").PresharedKey()
	if psk == "" {
		t.Fatal("no preshared key generated")
	}
	if got := client.Peer("wg0@testy.example.com").PresharedKey(); got != psk {
		t.Fatalf("client preshared key %q, server %q", got, psk)
	}

	wantServer := "[Interface]\n" +
		"# Name = wg0\n" +
		"Address = 10.10.0.1/32\n" +
		"PrivateKey = " + serverPriv + "\n" +
		"\n" +
		"[Peer]\n" +
		"# Name = urmom\n" +
		"AllowedIPs = 10.10.0.2/32\n" +
		"PublicKey = " + mustPubKey(t, clientPriv) + "\n" +
		"PresharedKey = " + psk + "\n" +
		"\n"
	if got := server.String(); got != wantServer {
		t.Log(cmp.Diff(got, wantServer))
		t.Fatal("mismatch")
	}

	wantClient := "[Interface]\n" +
		"# Description = urmom client for wg0 interface at testy.example.com\n" +
		"Address = 10.10.0.2/32\n" +
		"PrivateKey = " + clientPriv + "\n" +
		"\n" +
		"[Peer]\n" +
		"# Name = wg0@testy.example.com\n" +
		"AllowedIPs = 0.0.0.0/0, ::/0\n" +
		"PublicKey = " + mustPubKey(t, serverPriv) + "\n" +
		"Endpoint = testy.example.com:51820\n" +
		"PresharedKey = " + psk + "\n" +
		"\n"
	if got := client.String(); got != wantClient {
		t.Log(cmp.Diff(got, wantClient))
		t.Fatal("mismatch")
	}
	if _, ok := client.Path(); ok {
		t.Fatal("client config has a path")
	}
}

var clientUpdates = map[string]*goal.ClientProps{
	"puter": {
		Description:         goal.Some("Goes on your lap"),
		PrivateAddress:      goal.Some("10.10.10.11"),
		DNS:                 goal.Some([]string{"1.1.1.1", "8.8.8.8"}),
		PersistentKeepalive: goal.Some(25),
	},
	"telle": {
		Description:         goal.Some("Goes in your pocket"),
		PrivateAddress:      goal.Some("10.10.10.12"),
		DNS:                 goal.Some([]string{"8.8.8.8"}),
		PersistentKeepalive: goal.Some(50),
	},
}

func TestUpdateClients(t *testing.T) {
	c := newTestConfig(t, WithName("wg83"))
	err := c.UpdateInterface(goal.InterfaceProps{
		Description: goal.Some("Dat interface."),
		Address:     goal.Some([]string{"10.10.10.10"}),
		ListenPort:  goal.Some(12345),
		PostUp:      goal.Some("/etc/wireguard/wg83/hooks/go-up.sh"),
		PostDown:    goal.Some("/etc/wireguard/wg83/hooks/go-down.sh"),
		SaveConfig:  goal.Some(false),
	})
	if err != nil {
		t.Fatal(err)
	}
	configs, err := c.UpdateClients(clientUpdates)
	if err != nil {
		t.Fatal(err)
	}
	if len(configs) != 2 {
		t.Fatalf("got %d client configs", len(configs))
	}
	puter, telle := c.Peer("puter"), c.Peer("telle")
	want := "[Interface]\n" +
		"# Name = wg83\n" +
		"# Description = Dat interface.\n" +
		"Address = 10.10.10.10/32\n" +
		"PrivateKey = " + c.Interface().PrivateKey() + "\n" +
		"ListenPort = 12345\n" +
		"PostUp = /etc/wireguard/wg83/hooks/go-up.sh\n" +
		"PostDown = /etc/wireguard/wg83/hooks/go-down.sh\n" +
		"SaveConfig = false\n" +
		"\n" +
		"[Peer]\n" +
		"# Name = puter\n" +
		"# Description = Goes on your lap\n" +
		"AllowedIPs = 10.10.10.11/32\n" +
		"PublicKey = " + puter.PublicKey() + "\n" +
		"PresharedKey = " + puter.PresharedKey() + "\n" +
		"\n" +
		"[Peer]\n" +
		"# Name = telle\n" +
		"# Description = Goes in your pocket\n" +
		"AllowedIPs = 10.10.10.12/32\n" +
		"PublicKey = " + telle.PublicKey() + "\n" +
		"PresharedKey = " + telle.PresharedKey() + "\n" +
		"\n"
	if got := c.String(); got != want {
		t.Log(cmp.Diff(got, want))
		t.Fatal("mismatch")
	}

	puterConfig := configs["puter"]
	wantPuter := "[Interface]\n" +
		"# Description = puter client for wg83 interface at testy.example.com\n" +
		"Address = 10.10.10.11/32\n" +
		"PrivateKey = " + puterConfig.Interface().PrivateKey() + "\n" +
		"DNS = 1.1.1.1, 8.8.8.8\n" +
		"\n" +
		"[Peer]\n" +
		"# Name = wg83@testy.example.com\n" +
		"AllowedIPs = 0.0.0.0/0, ::/0\n" +
		"PublicKey = " + mustPubKey(t, c.Interface().PrivateKey()) + "\n" +
		"Endpoint = testy.example.com:12345\n" +
		"PersistentKeepalive = 25\n" +
		"PresharedKey = " + puter.PresharedKey() + "\n" +
		"\n"
	if got := puterConfig.String(); got != wantPuter {
		t.Log(cmp.Diff(got, wantPuter))
		t.Fatal("mismatch")
	}
	if got := mustPubKey(t, configs["telle"].Interface().PrivateKey()); got != telle.PublicKey() {
		t.Fatal("telle's config does not match its peer")
	}

	before := c.String()
	again, err := c.UpdateClients(clientUpdates)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Fatalf("second update returned %d client configs", len(again))
	}
	if c.String() != before {
		t.Log(cmp.Diff(c.String(), before))
		t.Fatal("second update changed the document")
	}
}

func TestINIInterop(t *testing.T) {
	c := newTestConfig(t, WithName("wg83"))
	if _, err := c.CreateInterface(goal.InterfaceProps{ListenPort: goal.Some(12345)}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.UpdateClients(clientUpdates); err != nil {
		t.Fatal(err)
	}
	f, err := ini.LoadSources(ini.LoadOptions{AllowNonUniqueSections: true}, []byte(c.String()))
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Section("Interface").Key("ListenPort").MustInt(); got != 12345 {
		t.Fatalf("listen port: %d", got)
	}
	peers, err := f.SectionsByName("Peer")
	if err != nil {
		t.Fatal(err)
	}
	var allowed []string
	for _, p := range peers {
		allowed = append(allowed, p.Key("AllowedIPs").String())
		if p.HasKey("Name") {
			t.Fatal("meta comment read as a key")
		}
	}
	if diff := cmp.Diff(allowed, []string{"10.10.10.11/32", "10.10.10.12/32"}); diff != "" {
		t.Log(diff)
		t.Fatal("mismatch")
	}
}

func TestWriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	c := newTestConfig(t, WithDir(dir))
	if _, err := c.CreateInterface(goal.InterfaceProps{}); err != nil {
		t.Fatal(err)
	}
	if err := c.Write(""); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "wg0.conf")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("mode %o", perm)
	}
	loaded := newTestConfig(t, WithDir(dir))
	if loaded.String() != c.String() {
		t.Log(cmp.Diff(loaded.String(), c.String()))
		t.Fatal("mismatch")
	}
	if loaded.Interface().PrivateKey() != c.Interface().PrivateKey() {
		t.Fatal("mismatch")
	}
}

func TestWriteNoDestination(t *testing.T) {
	c := newTestConfig(t, WithName(""))
	if err := c.Write(""); !errors.Is(err, ErrNoDestination) {
		t.Fatalf("got %v", err)
	}
	dest := filepath.Join(t.TempDir(), "client.conf")
	if err := c.Write(dest); err != nil {
		t.Fatal(err)
	}
}

func TestCreateInterfaceTwice(t *testing.T) {
	c := newTestConfig(t)
	if _, err := c.CreateInterface(goal.InterfaceProps{}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateInterface(goal.InterfaceProps{}); !errors.Is(err, goal.ErrValidation) {
		t.Fatalf("got %v", err)
	}
}

func TestUpdateInterfaceMissingRequired(t *testing.T) {
	c := newTestConfig(t)
	err := c.UpdateInterface(goal.InterfaceProps{Address: goal.Null[[]string]()})
	if !errors.Is(err, goal.ErrValidation) {
		t.Fatalf("got %v", err)
	}
	if !c.File.IsEmpty() {
		t.Fatalf("document changed: %q", c.String())
	}
}

func TestPublicEndpoint(t *testing.T) {
	c := newTestConfig(t, WithPublicAddress("fd00::1"))
	if _, err := c.CreateInterface(goal.InterfaceProps{ListenPort: goal.Some(0)}); err != nil {
		t.Fatal(err)
	}
	got, err := c.PublicEndpoint()
	if err != nil {
		t.Fatal(err)
	}
	if got != "[fd00::1]:51820" {
		t.Fatalf("got %q", got)
	}
}

func TestUpdateClientsAfterReload(t *testing.T) {
	dir := t.TempDir()
	updates := map[string]*goal.ClientProps{
		"puter": {
			Description:    goal.Some("my lap "),
			PrivateAddress: goal.Some("10.10.0.2"),
		},
	}
	c := newTestConfig(t, WithDir(dir))
	if _, err := c.CreateInterface(goal.InterfaceProps{}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.UpdateClients(updates); err != nil {
		t.Fatal(err)
	}
	if err := c.Write(""); err != nil {
		t.Fatal(err)
	}
	pub := c.Peer("puter").PublicKey()

	loaded := newTestConfig(t, WithDir(dir))
	configs, err := loaded.UpdateClients(updates)
	if err != nil {
		t.Fatal(err)
	}
	if len(configs) != 0 {
		t.Fatalf("reloaded update returned %d client configs", len(configs))
	}
	if got := loaded.Peer("puter").PublicKey(); got != pub {
		t.Fatal("reloaded update rotated the client key pair")
	}
	if loaded.String() != c.String() {
		t.Log(cmp.Diff(loaded.String(), c.String()))
		t.Fatal("mismatch")
	}
}
