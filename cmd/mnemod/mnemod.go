package main

import (
	"math/rand"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/mnemora/mnemora/internal/mnemod"
)

func main() {
	rand.New(rand.NewSource(time.Now().UTC().UnixNano()))

	mnemod.NewApp("mnemod").Run()
}
