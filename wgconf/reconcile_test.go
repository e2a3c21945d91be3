package wgconf_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nyiyui/wgconf/goal"
	"github.com/nyiyui/wgconf/keys"
	"github.com/nyiyui/wgconf/wgconf"
)

// countingKeys counts the preshared keys it generates.
type countingKeys struct {
	keys.Native
	psks int
}

func (k *countingKeys) GenPSK() (string, error) {
	k.psks++
	return k.Native.GenPSK()
}

func keyPair() (priv, pub string) {
	priv, err := keys.Native{}.GenKey()
	Expect(err).NotTo(HaveOccurred())
	pub, err = keys.Native{}.PubKey(priv)
	Expect(err).NotTo(HaveOccurred())
	return priv, pub
}

var _ = Describe("Config", func() {
	var (
		c   *wgconf.Config
		gen *countingKeys
	)

	BeforeEach(func() {
		gen = &countingKeys{}
		var err error
		c, err = wgconf.New("vpn.example.com", wgconf.WithDir(GinkgoT().TempDir()), wgconf.WithKeys(gen))
		Expect(err).NotTo(HaveOccurred())
		_, err = c.CreateInterface(goal.InterfaceProps{})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("UpdatePeers", func() {
		var laptopPub, phonePub string

		BeforeEach(func() {
			_, laptopPub = keyPair()
			_, phonePub = keyPair()
			Expect(c.UpdatePeers(map[string]*goal.PeerProps{
				"laptop": {AllowedIPs: goal.Some([]string{"10.10.0.2/32"}), PublicKey: goal.Some(laptopPub)},
				"phone":  {AllowedIPs: goal.Some([]string{"10.10.0.3/32"}), PublicKey: goal.Some(phonePub)},
			})).To(Succeed())
		})

		It("adds peers in name order", func() {
			peers := c.Peers()
			Expect(peers).To(HaveLen(2))
			Expect(peers[0].Name()).To(Equal("laptop"))
			Expect(peers[1].Name()).To(Equal("phone"))
		})

		It("is idempotent", func() {
			before := c.String()
			Expect(c.UpdatePeers(map[string]*goal.PeerProps{
				"laptop": {AllowedIPs: goal.Some([]string{"10.10.0.2/32"}), PublicKey: goal.Some(laptopPub)},
				"phone":  {AllowedIPs: goal.Some([]string{"10.10.0.3/32"}), PublicKey: goal.Some(phonePub)},
			})).To(Succeed())
			Expect(c.String()).To(Equal(before))
		})

		It("modifies only what changed", func() {
			Expect(c.UpdatePeers(map[string]*goal.PeerProps{
				"laptop": {Endpoint: goal.Some("laptop.example.com:51820")},
			})).To(Succeed())
			laptop := c.Peer("laptop")
			Expect(laptop.Endpoint()).To(Equal("laptop.example.com:51820"))
			Expect(laptop.AllowedIPs()).To(Equal([]string{"10.10.0.2/32"}))
			Expect(c.Peer("phone").Endpoint()).To(BeEmpty())
		})

		It("removes peers and ignores missing ones", func() {
			Expect(c.UpdatePeers(map[string]*goal.PeerProps{
				"phone":  nil,
				"tablet": nil,
			})).To(Succeed())
			Expect(c.Peers()).To(HaveLen(1))
			Expect(c.Peer("phone")).To(BeNil())
			Expect(c.String()).NotTo(ContainSubstring(phonePub))
		})

		It("finds renamed peers by public key", func() {
			Expect(c.UpdatePeers(map[string]*goal.PeerProps{
				"notebook": {Name: goal.Some("notebook"), PublicKey: goal.Some(laptopPub)},
			})).To(Succeed())
			Expect(c.Peers()).To(HaveLen(2))
			Expect(c.Peer("notebook").PublicKey()).To(Equal(laptopPub))
		})

		It("refuses a public key that belongs to another peer", func() {
			before := c.String()
			err := c.UpdatePeers(map[string]*goal.PeerProps{
				"laptop": {PublicKey: goal.Some(phonePub)},
			})
			Expect(err).To(MatchError(goal.ErrConflict))
			Expect(c.String()).To(Equal(before))
		})

		It("refuses two updates of the same peer", func() {
			err := c.UpdatePeers(map[string]*goal.PeerProps{
				"laptop":  {Endpoint: goal.Some("a.example.com:1")},
				"laptop2": {PublicKey: goal.Some(laptopPub)},
			})
			Expect(err).To(MatchError(goal.ErrConflict))
		})

		It("refuses new peers without required properties", func() {
			before := c.String()
			err := c.UpdatePeers(map[string]*goal.PeerProps{
				"desktop": {Endpoint: goal.Some("desktop.example.com:51820")},
				"laptop":  {Endpoint: goal.Some("laptop.example.com:51820")},
			})
			Expect(err).To(MatchError(goal.ErrValidation))
			Expect(c.String()).To(Equal(before))
		})

		Describe("preshared keys", func() {
			generate := goal.PresharedKey{Mode: goal.PSKGenerate}

			It("generates once and keeps the key", func() {
				Expect(c.UpdatePeers(map[string]*goal.PeerProps{"laptop": {PresharedKey: generate}})).To(Succeed())
				psk := c.Peer("laptop").PresharedKey()
				Expect(psk).NotTo(BeEmpty())
				Expect(gen.psks).To(Equal(1))

				Expect(c.UpdatePeers(map[string]*goal.PeerProps{"laptop": {PresharedKey: generate}})).To(Succeed())
				Expect(c.Peer("laptop").PresharedKey()).To(Equal(psk))
				Expect(gen.psks).To(Equal(1))
			})

			It("clears the key", func() {
				Expect(c.UpdatePeers(map[string]*goal.PeerProps{"laptop": {PresharedKey: generate}})).To(Succeed())
				Expect(c.UpdatePeers(map[string]*goal.PeerProps{
					"laptop": {PresharedKey: goal.PresharedKey{Mode: goal.PSKClear}},
				})).To(Succeed())
				Expect(c.Peer("laptop").PresharedKey()).To(BeEmpty())
			})

			It("sets an explicit key", func() {
				Expect(c.UpdatePeers(map[string]*goal.PeerProps{"laptop": {PresharedKey: generate}})).To(Succeed())
				Expect(c.UpdatePeers(map[string]*goal.PeerProps{
					"laptop": {PresharedKey: goal.PresharedKey{Mode: goal.PSKSet, Key: "explicit"}},
				})).To(Succeed())
				Expect(c.Peer("laptop").PresharedKey()).To(Equal("explicit"))
			})
		})
	})

	Describe("UpdateClients", func() {
		It("refuses addresses that are not /32", func() {
			before := c.String()
			_, err := c.UpdateClients(map[string]*goal.ClientProps{
				"laptop": {PrivateAddress: goal.Some("10.10.0.2/24")},
			})
			Expect(err).To(MatchError(goal.ErrValidation))
			Expect(c.String()).To(Equal(before))
		})

		It("refuses clients without an address", func() {
			_, err := c.UpdateClients(map[string]*goal.ClientProps{"laptop": {}})
			Expect(err).To(MatchError(goal.ErrValidation))
		})

		It("refuses mismatched key pairs", func() {
			priv, _ := keyPair()
			_, otherPub := keyPair()
			_, err := c.UpdateClients(map[string]*goal.ClientProps{
				"laptop": {
					PrivateAddress: goal.Some("10.10.0.2"),
					PrivateKey:     goal.Some(priv),
					PublicKey:      goal.Some(otherPub),
				},
			})
			Expect(err).To(MatchError(goal.ErrConflict))
			Expect(c.Peers()).To(BeEmpty())
		})

		It("registers clients with only a public key but makes no config", func() {
			_, pub := keyPair()
			configs, err := c.UpdateClients(map[string]*goal.ClientProps{
				"laptop": {PrivateAddress: goal.Some("10.10.0.2"), PublicKey: goal.Some(pub)},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(configs).To(BeEmpty())
			Expect(c.Peer("laptop").PublicKey()).To(Equal(pub))
			Expect(c.Peer("laptop").PresharedKey()).NotTo(BeEmpty())
		})

		It("uses a given private key", func() {
			priv, pub := keyPair()
			configs, err := c.UpdateClients(map[string]*goal.ClientProps{
				"laptop": {PrivateAddress: goal.Some("10.10.0.2"), PrivateKey: goal.Some(priv)},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(configs).To(HaveKey("laptop"))
			Expect(configs["laptop"].Interface().PrivateKey()).To(Equal(priv))
			Expect(c.Peer("laptop").PublicKey()).To(Equal(pub))
		})

		Context("with an existing client", func() {
			var priv, pub, psk string

			BeforeEach(func() {
				priv, pub = keyPair()
				configs, err := c.UpdateClients(map[string]*goal.ClientProps{
					"laptop": {PrivateAddress: goal.Some("10.10.0.2"), PrivateKey: goal.Some(priv)},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(configs).To(HaveLen(1))
				psk = c.Peer("laptop").PresharedKey()
				Expect(psk).NotTo(BeEmpty())
			})

			It("returns nothing when nothing changed", func() {
				before := c.String()
				configs, err := c.UpdateClients(map[string]*goal.ClientProps{
					"laptop": {PrivateAddress: goal.Some("10.10.0.2")},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(configs).To(BeEmpty())
				Expect(c.String()).To(Equal(before))
			})

			It("still makes the config when the private key is given", func() {
				before := c.String()
				configs, err := c.UpdateClients(map[string]*goal.ClientProps{
					"laptop": {PrivateKey: goal.Some(priv)},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(c.String()).To(Equal(before))
				Expect(configs).To(HaveKey("laptop"))
				client := configs["laptop"]
				Expect(client.Interface().Address()).To(Equal([]string{"10.10.0.2/32"}))
				Expect(client.FirstPeer().PresharedKey()).To(Equal(psk))
			})

			It("generates a new key pair when the server side changes without a private key", func() {
				configs, err := c.UpdateClients(map[string]*goal.ClientProps{
					"laptop": {PrivateAddress: goal.Some("10.10.0.9")},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(configs).To(HaveKey("laptop"))
				newPub := c.Peer("laptop").PublicKey()
				Expect(newPub).NotTo(Equal(pub))
				newPriv := configs["laptop"].Interface().PrivateKey()
				Expect(keys.Native{}.PubKey(newPriv)).To(Equal(newPub))
				Expect(c.Peer("laptop").AllowedIPs()).To(Equal([]string{"10.10.0.9/32"}))
			})

			It("keeps the preshared key on regenerate", func() {
				configs, err := c.UpdateClients(map[string]*goal.ClientProps{
					"laptop": {PrivateKey: goal.Some(priv), PresharedKey: goal.PresharedKey{Mode: goal.PSKGenerate}},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(c.Peer("laptop").PresharedKey()).To(Equal(psk))
				Expect(configs["laptop"].FirstPeer().PresharedKey()).To(Equal(psk))
			})

			It("clears the preshared key on both sides", func() {
				configs, err := c.UpdateClients(map[string]*goal.ClientProps{
					"laptop": {PrivateKey: goal.Some(priv), PresharedKey: goal.PresharedKey{Mode: goal.PSKClear}},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(c.Peer("laptop").PresharedKey()).To(BeEmpty())
				Expect(configs["laptop"].FirstPeer().PresharedKey()).To(BeEmpty())
			})

			It("removes the client", func() {
				configs, err := c.UpdateClients(map[string]*goal.ClientProps{"laptop": nil})
				Expect(err).NotTo(HaveOccurred())
				Expect(configs).To(BeEmpty())
				Expect(c.Peers()).To(BeEmpty())
			})
		})
	})

	Describe("Update", func() {
		It("applies the interface, clients and peers", func() {
			_, pub := keyPair()
			configs, err := c.Update(
				&goal.InterfaceProps{ListenPort: goal.Some(51821)},
				map[string]*goal.PeerProps{"router": {AllowedIPs: goal.Some([]string{"10.20.0.0/16"}), PublicKey: goal.Some(pub)}},
				map[string]*goal.ClientProps{"laptop": {PrivateAddress: goal.Some("10.10.0.2")}},
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(configs).To(HaveKey("laptop"))
			Expect(c.Peers()).To(HaveLen(2))
			endpoint := configs["laptop"].FirstPeer().Endpoint()
			Expect(endpoint).To(Equal("vpn.example.com:51821"))
		})
	})
})
