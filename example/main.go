package main

import (
	"context"

	slirc "github.com/Laisky/go-slirc"
	gutils "github.com/Laisky/go-utils"
	"github.com/Laisky/zap"
)

// appEvent is a module-defined event id enum, registered with
// RegisterIdentityType the way original_source/example/
// example.event.id_type.enum.cpp registers my_events with
// SLIRC_REGISTER_EVENT_ID_ENUM.
type appEvent slirc.Ordinal

const (
	startup appEvent = iota
	greeted
	shutdown
)

func init() {
	slirc.RegisterIdentityType[appEvent]()
}

func main() {
	irc, err := slirc.NewContext()
	if err != nil {
		gutils.Logger.Panic("new context", zap.Error(err))
	}
	defer irc.Close()

	manager := irc.EventManager()

	if _, err := manager.Connect(slirc.MustMakeIdentity(startup), func(e *slirc.Event) error {
		gutils.Logger.Info("starting up")
		greetedID := slirc.MustMakeIdentity(greeted)
		e.QueueAs(greetedID, slirc.Duplicate, slirc.Back)
		return nil
	}, slirc.Normal); err != nil {
		gutils.Logger.Panic("connect startup", zap.Error(err))
	}

	if _, err := manager.Connect(slirc.MustMakeIdentity(greeted), func(e *slirc.Event) error {
		gutils.Logger.Info("hello from slirc")
		shutdownEvt, err := irc.MakeEvent(slirc.MustMakeIdentity(shutdown))
		if err != nil {
			return err
		}
		if err := e.Afterwards(shutdownEvt); err != nil {
			return err
		}
		return nil
	}, slirc.Normal); err != nil {
		gutils.Logger.Panic("connect greeted", zap.Error(err))
	}

	if _, err := manager.Connect(slirc.MustMakeIdentity(shutdown), func(e *slirc.Event) error {
		gutils.Logger.Info("shutting down")
		return nil
	}, slirc.Normal); err != nil {
		gutils.Logger.Panic("connect shutdown", zap.Error(err))
	}

	startupEvt, err := irc.MakeEvent(slirc.MustMakeIdentity(startup))
	if err != nil {
		gutils.Logger.Panic("make startup event", zap.Error(err))
	}
	if err := manager.Post(startupEvt); err != nil {
		gutils.Logger.Panic("post startup event", zap.Error(err))
	}

	ctx := context.Background()
	for {
		e, ok := manager.Wait(ctx)
		if !ok {
			break
		}
		if err := e.Handle(); err != nil {
			gutils.Logger.Error("handle event", zap.Error(err))
		}
		if slirc.IsOfType[appEvent](e.OriginID()) {
			v, _ := slirc.Get[appEvent](e.OriginID())
			if v == shutdown {
				break
			}
		}
	}
}
