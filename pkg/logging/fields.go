package logging

import "log/slog"

// Domain identifiers

func User(id string) slog.Attr {
	return slog.String("user_id", id)
}

func Receiver(id string) slog.Attr {
	return slog.String("receiver_id", id)
}

func Call(id string) slog.Attr {
	return slog.String("call_id", id)
}

func Room(id string) slog.Attr {
	return slog.String("room_id", id)
}

func ClientMsg(id string) slog.Attr {
	return slog.String("client_msg_id", id)
}

func Handle(id string) slog.Attr {
	return slog.String("handle_id", id)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
