package rpc

import "context"

func newSystemMethods() *Methods {
	m := NewMethods()
	m.registerSystem("system.listMethods", listMethods,
		"This method lists all the methods that the RPC server knows how to dispatch",
		Sig(Array))
	m.registerSystem("system.methodHelp", methodHelp,
		"Returns help text if defined for the method passed, otherwise returns an empty string",
		Sig(String, String))
	m.registerSystem("system.methodSignature", methodSignature,
		"Returns an array of known signatures (an array of arrays) for the method name passed. "+
			"If no signatures are known, returns null (test for type != array to detect missing signature)",
		Sig(Array, String))
	return m
}

func listMethods(s *Server, _ context.Context, _ Params) (interface{}, error) {
	names := s.methods.Names()
	if s.opts.AllowSystemFuncs {
		names = append(names, s.system.Names()...)
	}
	return names, nil
}

func methodHelp(s *Server, _ context.Context, p Params) (interface{}, error) {
	m, ok := s.lookup(p.String(0))
	if !ok {
		return nil, s.errs.Fault(ErrIntrospectUnknown)
	}
	return m.Doc, nil
}

func methodSignature(s *Server, _ context.Context, p Params) (interface{}, error) {
	m, ok := s.lookup(p.String(0))
	if !ok {
		return nil, s.errs.Fault(ErrIntrospectUnknown)
	}
	if len(m.Signatures) == 0 {
		return nil, nil
	}
	sigs := make([][]string, len(m.Signatures))
	for i, sig := range m.Signatures {
		sigs[i] = sig.strings()
	}
	return sigs, nil
}
