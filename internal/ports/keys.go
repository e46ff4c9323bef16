package ports

import "github.com/eleven-am/poanet/internal/domain"

type KeyGenerator interface {
	Generate() (domain.NodeIdentity, error)
	FromSeed(seed string) (domain.NodeIdentity, error)
	FromPrivateKey(privateKey string) (domain.NodeIdentity, error)
}
