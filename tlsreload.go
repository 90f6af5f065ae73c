package main

import (
	"crypto/tls"
	"log"
	"sync"
	"time"
)

// certReloader serves a TLS keypair and refreshes it from disk in the
// background, so rotated certificates are picked up without a restart.
type certReloader struct {
	mu       sync.RWMutex
	cert     *tls.Certificate
	certPath string
	keyPath  string
}

const certReloadInterval = 15 * time.Second

func newCertReloader(certPath, keyPath string) (*certReloader, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	c := &certReloader{
		cert:     &cert,
		certPath: certPath,
		keyPath:  keyPath,
	}
	go c.reloadLoop()
	return c, nil
}

func (c *certReloader) reloadLoop() {
	for {
		time.Sleep(certReloadInterval)
		cert, err := tls.LoadX509KeyPair(c.certPath, c.keyPath)
		if err != nil {
			// Keep serving the old pair.
			log.Printf("cannot reload TLS keypair: %s", err)
			continue
		}
		c.mu.Lock()
		c.cert = &cert
		c.mu.Unlock()
	}
}

func (c *certReloader) getCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cert, nil
}
