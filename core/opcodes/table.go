package opcodes

// Descriptor is the static description of one opcode byte.
type Descriptor struct {
	Code         ByteCode
	Pops         int
	Pushes       int
	ImmediateLen int

	Halts      bool // execution ends here (STOP, RETURN, REVERT, SELFDESTRUCT, invalid bytes)
	AltersFlow bool // terminates a basic block
	Invalid    bool // undefined byte or the designated INVALID opcode
	Missing    bool // instruction truncated by the end of the code
}

// IsJump reports whether d is JUMP or JUMPI.
func (d Descriptor) IsJump() bool {
	return d.Code == JUMP || d.Code == JUMPI
}

var table [256]Descriptor

// Lookup returns the descriptor of the given byte. Bytes without an assigned
// opcode come back flagged as invalid and halting.
func Lookup(b byte) Descriptor {
	return table[b]
}

func define(op ByteCode, pops, pushes int) {
	table[op] = Descriptor{Code: op, Pops: pops, Pushes: pushes}
}

func init() {
	for i := range table {
		table[i] = Descriptor{Code: ByteCode(i), Halts: true, Invalid: true}
	}

	define(STOP, 0, 0)
	for _, op := range []ByteCode{ADD, MUL, SUB, DIV, SDIV, MOD, SMOD, EXP, SIGNEXTEND} {
		define(op, 2, 1)
	}
	define(ADDMOD, 3, 1)
	define(MULMOD, 3, 1)
	for _, op := range []ByteCode{LT, GT, SLT, SGT, EQ, AND, OR, XOR, BYTE, SHL, SHR, SAR} {
		define(op, 2, 1)
	}
	define(ISZERO, 1, 1)
	define(NOT, 1, 1)
	define(KECCAK256, 2, 1)

	for _, op := range []ByteCode{
		ADDRESS, ORIGIN, CALLER, CALLVALUE, CALLDATASIZE, CODESIZE, GASPRICE,
		RETURNDATASIZE, COINBASE, TIMESTAMP, NUMBER, DIFFICULTY, GASLIMIT,
		CHAINID, SELFBALANCE, BASEFEE, BLOBBASEFEE, PC, MSIZE, GAS, PUSH0,
	} {
		define(op, 0, 1)
	}
	for _, op := range []ByteCode{
		BALANCE, CALLDATALOAD, EXTCODESIZE, EXTCODEHASH, BLOCKHASH, BLOBHASH,
		MLOAD, SLOAD, TLOAD,
	} {
		define(op, 1, 1)
	}
	define(CALLDATACOPY, 3, 0)
	define(CODECOPY, 3, 0)
	define(EXTCODECOPY, 4, 0)
	define(RETURNDATACOPY, 3, 0)
	define(MCOPY, 3, 0)
	define(POP, 1, 0)
	define(MSTORE, 2, 0)
	define(MSTORE8, 2, 0)
	define(SSTORE, 2, 0)
	define(TSTORE, 2, 0)
	define(JUMP, 1, 0)
	define(JUMPI, 2, 0)
	define(JUMPDEST, 0, 0)

	for op := PUSH1; op <= PUSH32; op++ {
		define(op, 0, 1)
		table[op].ImmediateLen = op.PushLen()
	}
	// DUPn reads n items and leaves n+1, SWAPn reads and leaves n+1.
	for n := 1; n <= 16; n++ {
		define(DUP1+ByteCode(n-1), n, n+1)
		define(SWAP1+ByteCode(n-1), n+1, n+1)
	}
	for n := 0; n <= 4; n++ {
		define(LOG0+ByteCode(n), n+2, 0)
	}

	define(CREATE, 3, 1)
	define(CALL, 7, 1)
	define(CALLCODE, 7, 1)
	define(RETURN, 2, 0)
	define(DELEGATECALL, 6, 1)
	define(CREATE2, 4, 1)
	define(STATICCALL, 6, 1)
	define(REVERT, 2, 0)
	define(SELFDESTRUCT, 1, 0)

	for _, op := range []ByteCode{STOP, RETURN, REVERT, SELFDESTRUCT} {
		table[op].Halts = true
		table[op].AltersFlow = true
	}
	table[JUMP].AltersFlow = true
	table[JUMPI].AltersFlow = true
	table[INVALID].AltersFlow = true
}
