package provider

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "go.uber.org/zap"

    "netinf/pkg/object"
    "netinf/pkg/protocol"
    "netinf/pkg/transport"
)

// Handler resolves inbound requests.
type Handler interface {
    Get(ctx context.Context, id string) (object.Object, error)
    Put(ctx context.Context, o object.Object) error
}

// Responder answers exchanges started by peers: one request, one response,
// then the session is closed. A request the handler cannot satisfy is
// answered by closing the session without a response.
type Responder struct {
    h     Handler
    codec *protocol.Codec
    // ReadTimeout bounds the wait for the request frame. Zero selects 10s.
    ReadTimeout time.Duration

    wg sync.WaitGroup
}

func NewResponder(h Handler, codec *protocol.Codec) *Responder {
    if codec == nil { codec = protocol.NewCodec(object.NewEncoder(nil, object.FormatCBOR), 0) }
    return &Responder{h: h, codec: codec}
}

// Serve accepts sessions from l until ctx ends or the listener fails, then
// waits for in-flight exchanges to finish.
func (r *Responder) Serve(ctx context.Context, l transport.Listener) error {
    defer r.wg.Wait()
    for {
        sess, err := l.Accept(ctx)
        if err != nil {
            if ctx.Err() != nil { return nil }
            return err
        }
        r.wg.Add(1)
        go func() {
            defer r.wg.Done()
            r.Handle(ctx, sess)
        }()
    }
}

// Handle runs one exchange on sess and closes it.
func (r *Responder) Handle(ctx context.Context, sess transport.Session) {
    defer sess.Close()
    stop := context.AfterFunc(ctx, func() { _ = sess.Close() })
    defer stop()
    log := zap.L().With(zap.String("remote", string(sess.Peer().ID)))

    rt := r.ReadTimeout
    if rt <= 0 { rt = 10 * time.Second }
    raw, err := protocol.NewFrameReader(sess, r.codec.MaxFrameSize()).ReadFrame(time.Now().Add(rt))
    if err != nil {
        log.Debug("request read failed", zap.Error(err))
        return
    }
    req, err := r.codec.DecodeRequest(raw)
    if err != nil {
        log.Warn("bad request", zap.Error(err))
        return
    }
    resp, err := r.dispatch(ctx, req)
    if err != nil {
        log.Info("request not served", zap.Stringer("method", req.Method), zap.String("id", req.ID), zap.Error(err))
        return
    }
    out, err := r.codec.EncodeResponse(resp)
    if err != nil {
        log.Warn("response encode failed", zap.Error(err))
        return
    }
    if err := sess.Send(out); err != nil {
        log.Debug("response send failed", zap.Error(err))
        return
    }
    log.Debug("request served", zap.Stringer("method", req.Method), zap.String("id", req.ID))
}

func (r *Responder) dispatch(ctx context.Context, req protocol.Request) (protocol.Response, error) {
    switch req.Method {
    case protocol.MethodGet:
        o, err := r.h.Get(ctx, req.ID)
        if err != nil { return protocol.Response{}, err }
        return protocol.Response{Method: protocol.MethodGet, Object: o}, nil
    case protocol.MethodPut:
        if req.Object == nil { return protocol.Response{}, errors.New("put without object") }
        if err := r.h.Put(ctx, *req.Object); err != nil { return protocol.Response{}, err }
        return protocol.Response{Method: protocol.MethodPut, Object: *req.Object}, nil
    default:
        return protocol.Response{}, fmt.Errorf("unsupported method %s", req.Method)
    }
}
